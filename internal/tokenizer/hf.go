package tokenizer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// HFTokenizer is a byte-level BPE tokenizer loaded from a Hugging Face
// tokenizer.json.
type HFTokenizer struct {
	encoder     map[string]int
	decoder     []string
	ranks       map[Pair]int
	byteEncoder map[byte]string
	byteDecoder map[string]byte
	pattern     *regexp.Regexp
	special     []string
	specialIDs  []int
	addBOS      bool
	bosID       int
	unkID       int

	mu    sync.Mutex
	cache map[string][]string
}

type hfJSON struct {
	Model struct {
		Type     string         `json:"type"`
		Vocab    map[string]int `json:"vocab"`
		Merges   []any          `json:"merges"`
		UnkToken string         `json:"unk_token"`
	} `json:"model"`
	PreTokenizer struct {
		Type          string `json:"type"`
		Pretokenizers []struct {
			Type    string `json:"type"`
			Pattern struct {
				Regex string `json:"Regex"`
			} `json:"pattern"`
		} `json:"pretokenizers"`
	} `json:"pre_tokenizer"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

type hfConfigJSON struct {
	AddBOS bool `json:"add_bos_token"`
	BOS    any  `json:"bos_token"`
}

const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`

// Go regexp has no lookahead; llama3-style patterns fall back to this form.
const llamaPattern = `(?:'[sS]|'[tT]|'[rR][eE]|'[vV][eE]|'[mM]|'[lL][lL]|'[dD])|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+`

// LoadHF reads tokenizer.json from path, which may be the file itself or a
// directory holding it. A sibling tokenizer_config.json is used when present.
func LoadHF(path string) (*HFTokenizer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if info.IsDir() {
		dir = path
		path = filepath.Join(dir, "tokenizer.json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	cfg, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json"))
	if err != nil {
		cfg = nil
	}
	return ParseHF(data, cfg)
}

// ParseHF builds a tokenizer from raw tokenizer.json and optional
// tokenizer_config.json contents.
func ParseHF(tokJSON, tokConfig []byte) (*HFTokenizer, error) {
	var tj hfJSON
	if err := json.Unmarshal(tokJSON, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if !strings.EqualFold(tj.Model.Type, "BPE") {
		return nil, fmt.Errorf("unsupported tokenizer model: %q", tj.Model.Type)
	}

	maxID := -1
	for _, id := range tj.Model.Vocab {
		maxID = max(maxID, id)
	}
	for _, at := range tj.AddedTokens {
		maxID = max(maxID, at.ID)
	}
	if maxID < 0 {
		return nil, fmt.Errorf("tokenizer has an empty vocabulary")
	}

	t := &HFTokenizer{
		encoder: make(map[string]int, maxID+1),
		decoder: make([]string, maxID+1),
		ranks:   make(map[Pair]int, len(tj.Model.Merges)),
		pattern: regexp.MustCompile(pretokenizePattern(tj)),
		bosID:   -1,
		unkID:   -1,
		cache:   make(map[string][]string),
	}
	t.byteEncoder, t.byteDecoder = bytesToUnicode()

	for tok, id := range tj.Model.Vocab {
		t.encoder[tok] = id
		t.decoder[id] = tok
	}
	for _, at := range tj.AddedTokens {
		t.encoder[at.Content] = at.ID
		t.decoder[at.ID] = at.Content
		if at.Special || looksSpecial(at.Content) {
			t.special = append(t.special, at.Content)
			t.specialIDs = append(t.specialIDs, at.ID)
		}
	}
	for tok, id := range tj.Model.Vocab {
		if looksSpecial(tok) && !slices.Contains(t.specialIDs, id) {
			t.special = append(t.special, tok)
			t.specialIDs = append(t.specialIDs, id)
		}
	}
	sortLongestFirst(t.special)
	slices.Sort(t.specialIDs)

	for _, raw := range tj.Model.Merges {
		p, ok := parseMerge(raw)
		if !ok {
			continue
		}
		if _, seen := t.ranks[p]; !seen {
			t.ranks[p] = len(t.ranks)
		}
	}

	if id, ok := t.encoder[tj.Model.UnkToken]; ok {
		t.unkID = id
	}
	if len(tokConfig) > 0 {
		var cfg hfConfigJSON
		if err := json.Unmarshal(tokConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse tokenizer_config.json: %w", err)
		}
		if bos := tokenContent(cfg.BOS); bos != "" {
			if id, ok := t.encoder[bos]; ok {
				t.bosID = id
				t.addBOS = cfg.AddBOS
			}
		}
	}
	return t, nil
}

func parseMerge(raw any) (Pair, bool) {
	var a, b string
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" || strings.HasPrefix(v, "#") {
			return Pair{}, false
		}
		var ok bool
		a, b, ok = strings.Cut(v, " ")
		if !ok || strings.Contains(b, " ") {
			return Pair{}, false
		}
	case []any:
		if len(v) != 2 {
			return Pair{}, false
		}
		var aok, bok bool
		a, aok = v[0].(string)
		b, bok = v[1].(string)
		if !aok || !bok {
			return Pair{}, false
		}
	default:
		return Pair{}, false
	}
	return Pair{A: a, B: b}, true
}

// tokenContent accepts both the plain string and the AddedToken object forms.
func tokenContent(v any) string {
	switch tok := v.(type) {
	case string:
		return tok
	case map[string]any:
		s, _ := tok["content"].(string)
		return s
	}
	return ""
}

func pretokenizePattern(tj hfJSON) string {
	pat := gpt2Pattern
	if tj.PreTokenizer.Type == "Sequence" {
		for _, p := range tj.PreTokenizer.Pretokenizers {
			if p.Type == "Split" && p.Pattern.Regex != "" {
				pat = p.Pattern.Regex
				break
			}
		}
	}
	if strings.Contains(pat, `(?!\S)`) || strings.Contains(pat, "(?i:") {
		pat = llamaPattern
	}
	if _, err := regexp.Compile(pat); err != nil {
		pat = gpt2Pattern
	}
	return pat
}

func (t *HFTokenizer) VocabSize() int { return len(t.decoder) }

func (t *HFTokenizer) SpecialIDs() []int { return slices.Clone(t.specialIDs) }

// TokenString returns the vocabulary entry for id.
func (t *HFTokenizer) TokenString(id int) string {
	if id < 0 || id >= len(t.decoder) {
		return ""
	}
	return t.decoder[id]
}

func (t *HFTokenizer) Encode(text string) ([]int, error) {
	var ids []int
	if t.addBOS {
		ids = append(ids, t.bosID)
	}
	for _, part := range splitSpecials(text, t.special) {
		if part.isSpecial {
			ids = append(ids, t.encoder[part.text])
			continue
		}
		for _, piece := range t.pattern.FindAllString(part.text, -1) {
			for _, sym := range t.bpe(t.byteEncode(piece)) {
				id, ok := t.encoder[sym]
				switch {
				case ok:
					ids = append(ids, id)
				case t.unkID >= 0:
					ids = append(ids, t.unkID)
				default:
					return nil, fmt.Errorf("unknown token: %q", sym)
				}
			}
		}
	}
	return ids, nil
}

func (t *HFTokenizer) Decode(ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || id >= len(t.decoder) {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		tok := t.decoder[id]
		if slices.Contains(t.special, tok) {
			b = append(b, tok...)
			continue
		}
		for _, r := range tok {
			if by, ok := t.byteDecoder[string(r)]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

func (t *HFTokenizer) byteEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		b.WriteString(t.byteEncoder[s[i]])
	}
	return b.String()
}

func (t *HFTokenizer) bpe(token string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.cache[token]; ok {
		return v
	}
	word := splitRunes(token)
	for len(word) > 1 {
		best, bestRank := Pair{}, math.MaxInt
		for p := range getPairs(word) {
			if rank, ok := t.ranks[p]; ok && rank < bestRank {
				best, bestRank = p, rank
			}
		}
		if bestRank == math.MaxInt {
			break
		}
		word = mergePair(word, best)
	}
	t.cache[token] = word
	return word
}
