package embedder

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// maxTokens caps the encoded sequence length, [CLS] and [SEP] included.
// Emails longer than this are truncated before inference.
const maxTokens = 256

// wordPieceTokenizer implements uncased BERT-style tokenization against a
// vocab.txt vocabulary (one token per line, ID = line number).
type wordPieceTokenizer struct {
	ids map[string]int64

	padID int64
	unkID int64
	clsID int64
	sepID int64
}

func loadTokenizer(vocabPath string) (*wordPieceTokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	defer f.Close()

	ids := make(map[string]int64, 32768)
	scanner := bufio.NewScanner(f)
	var next int64
	for scanner.Scan() {
		ids[scanner.Text()] = next
		next++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: reading vocab: %w", err)
	}
	if next == 0 {
		return nil, fmt.Errorf("tokenizer: vocab file %s is empty", vocabPath)
	}

	tok := &wordPieceTokenizer{ids: ids}
	for _, special := range []struct {
		token string
		dest  *int64
	}{
		{"[PAD]", &tok.padID},
		{"[UNK]", &tok.unkID},
		{"[CLS]", &tok.clsID},
		{"[SEP]", &tok.sepID},
	} {
		id, ok := ids[special.token]
		if !ok {
			return nil, fmt.Errorf("tokenizer: vocab is missing %s", special.token)
		}
		*special.dest = id
	}
	return tok, nil
}

// encode converts text into input IDs and an attention mask, wrapped in
// [CLS]/[SEP] and truncated to maxTokens. No padding is added: the model is
// always fed a single sequence at its exact length.
func (t *wordPieceTokenizer) encode(text string) (inputIDs, attentionMask []int64) {
	pieces := t.split(text)
	if len(pieces) > maxTokens-2 {
		pieces = pieces[:maxTokens-2]
	}

	inputIDs = make([]int64, 0, len(pieces)+2)
	inputIDs = append(inputIDs, t.clsID)
	for _, p := range pieces {
		inputIDs = append(inputIDs, t.lookup(p))
	}
	inputIDs = append(inputIDs, t.sepID)

	attentionMask = make([]int64, len(inputIDs))
	for i := range attentionMask {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask
}

func (t *wordPieceTokenizer) lookup(token string) int64 {
	if id, ok := t.ids[token]; ok {
		return id
	}
	return t.unkID
}

// split lowercases the text, breaks it into words and punctuation, and
// decomposes each word into WordPiece subwords via greedy longest-match.
func (t *wordPieceTokenizer) split(text string) []string {
	var pieces []string
	for _, word := range basicTokens(text) {
		pieces = append(pieces, t.wordPieces(word)...)
	}
	return pieces
}

func (t *wordPieceTokenizer) wordPieces(word string) []string {
	runes := []rune(word)
	if len(runes) > 100 {
		return []string{"[UNK]"}
	}

	var out []string
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := ""
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if _, ok := t.ids[candidate]; ok {
				matched = candidate
				break
			}
			end--
		}
		if matched == "" {
			return []string{"[UNK]"}
		}
		out = append(out, matched)
		start = end
	}
	return out
}

// basicTokens lowercases the input, drops control characters, and splits on
// whitespace with punctuation runes kept as standalone tokens.
func basicTokens(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case r == 0 || r == 0xFFFD || (unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r'):
			// skip
		case unicode.IsSpace(r):
			flush()
		case isPunct(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// isPunct matches BERT's punctuation classes: the four ASCII symbol ranges
// plus anything Unicode considers punctuation.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
