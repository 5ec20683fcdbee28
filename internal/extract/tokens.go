package extract

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"go.uber.org/zap"
)

// Tokenizer counts model tokens in a text.
type Tokenizer interface {
	Count(text string) int
}

// TiktokenCounter counts cl100k_base tokens. Claude tokenizes differently,
// but the count is close enough to size prompts.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding from the embedded BPE
// files, so no network access is needed.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// WordCounter counts whitespace separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

var (
	defaultTokenizerOnce sync.Once
	defaultTokenizer     Tokenizer
)

// DefaultTokenizer returns a shared tiktoken counter, or a WordCounter when
// the encoding cannot be loaded.
func DefaultTokenizer() Tokenizer {
	defaultTokenizerOnce.Do(func() {
		tc, err := NewTiktokenCounter()
		if err != nil {
			zap.L().Warn("extract: tiktoken unavailable, counting words instead", zap.Error(err))
			defaultTokenizer = WordCounter{}
			return
		}
		defaultTokenizer = tc
	})
	return defaultTokenizer
}

// TruncateToBudget cuts text to its first maxTokens words when it counts
// more than maxTokens tokens. The second result reports whether anything was
// dropped.
func TruncateToBudget(text string, tok Tokenizer, maxTokens int) (string, bool) {
	count := tok.Count(text)
	if count <= maxTokens {
		return text, false
	}
	zap.L().Error("extract: transcript too long, truncating (data loss)",
		zap.Int("tokens", count),
		zap.Int("max_tokens", maxTokens),
	)
	words := strings.Fields(text)
	if len(words) > maxTokens {
		words = words[:maxTokens]
	}
	return strings.Join(words, " "), true
}
