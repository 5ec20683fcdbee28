package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/export"
	"github.com/sells-group/formfill-cli/internal/formlib"
	"github.com/sells-group/formfill-cli/internal/pipeline"
	"github.com/sells-group/formfill-cli/internal/prompt"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initFiller(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		env.Report(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// extractRequest is the body of POST /v1/forms/{form}/extract.
type extractRequest struct {
	Text string `json:"text"`
	fillRequest
}

// extractResponse carries the filled records. ParsingError is set when the
// model answer could not be parsed; the records are then empty.
type extractResponse struct {
	Form         string            `json:"form"`
	Records      []export.Document `json:"records"`
	ParsingError string            `json:"parsing_error,omitempty"`
}

// buildRouter wires the HTTP API on top of env.
func buildRouter(env *fillEnv, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/forms", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string][]string{"forms": formlib.Names()})
		})

		r.Get("/forms/{form}", func(w http.ResponseWriter, r *http.Request) {
			def, err := formlib.Get(chi.URLParam(r, "form"))
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, export.Schema(def))
		})

		r.Post("/forms/{form}/extract", func(w http.ResponseWriter, r *http.Request) {
			def, err := formlib.Get(chi.URLParam(r, "form"))
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			var req extractRequest
			if !decodeText(w, r, &req, &req.Text) {
				return
			}

			ctx := taskContext(r)
			rows, err := fillTranscript(ctx, env.Filler, def, req.Text, req.fillRequest)
			resp := extractResponse{Form: def.Name(), Records: []export.Document{}}
			if err != nil {
				if !isExtractionError(err) {
					zap.L().Error("extract request failed", zap.String("form", def.Name()), zap.Error(err))
					writeError(w, http.StatusBadGateway, err)
					return
				}
				resp.ParsingError = err.Error()
				writeJSON(w, http.StatusOK, resp)
				return
			}
			for _, d := range rows {
				resp.Records = append(resp.Records, export.NewDocument(export.Record{Data: d}))
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Post("/networking", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Text string `json:"text"`
			}
			if !decodeText(w, r, &req, &req.Text) {
				return
			}
			flow, err := pipeline.NewNetworking(env.Filler)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			entries, err := flow.Run(taskContext(r), req.Text)
			if err != nil {
				zap.L().Error("networking request failed", zap.Error(err))
				writeError(w, http.StatusBadGateway, err)
				return
			}
			if entries == nil {
				entries = []pipeline.PersonEntry{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"people": entries})
		})

		r.Get("/usage", func(w http.ResponseWriter, r *http.Request) {
			snap := env.Engine.Stats().Snapshot()
			writeJSON(w, http.StatusOK, map[string]any{
				"stats": snap,
				"cost":  env.Prices.Usage(snap.PerModel),
			})
		})
	})

	return r
}

// decodeText decodes the JSON body into dst and checks that text is set.
// It writes the error response and returns false on failure.
func decodeText(w http.ResponseWriter, r *http.Request, dst any, text *string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return false
	}
	if *text == "" {
		writeError(w, http.StatusBadRequest, eris.New("text is required"))
		return false
	}
	return true
}

func taskContext(r *http.Request) context.Context {
	return prompt.WithTaskID(r.Context(), middleware.GetReqID(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
