package util

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

func IsNormalString(b []byte) bool {
	str := string(b)

	if !utf8.ValidString(str) {
		return false
	}

	for _, r := range str {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// ReplacementRatio reports the fraction of runes in b that decode to the
// invalid-character marker. Used to decide whether a decompressed blob is
// actually text or garbage.
func ReplacementRatio(b []byte) float64 {
	total := 0
	bad := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			bad++
		}
		total++
		b = b[size:]
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}

// DecodeMaybeEncoded decodes s if it looks like hex or base64 encoded bytes,
// otherwise returns s unchanged.
func DecodeMaybeEncoded(s string) []byte {
	if IsHexString(s) && len(s)%2 == 0 && len(s) >= 8 {
		if b, err := hex.DecodeString(s); err == nil {
			return b
		}
	}
	if strings.HasSuffix(s, "=") || looksBase64(s) {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) > 0 {
			return b
		}
	}
	return []byte(s)
}

func looksBase64(s string) bool {
	if len(s) < 16 || len(s)%4 != 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+' || r == '/' || r == '=':
		default:
			return false
		}
	}
	return true
}

func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// IsContentHash reports whether s looks like a 32-char hex content hash.
func IsContentHash(s string) bool {
	return len(s) == 32 && IsHexString(s)
}

func IsNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func MustAnyToInt(v interface{}) int {
	str := fmt.Sprintf("%v", v)
	if i, err := strconv.Atoi(str); err == nil {
		return i
	}
	return 0
}

func Str2List(s string, sep string) []string {
	list := make([]string, 0)
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if len(item) != 0 {
			list = append(list, item)
		}
	}
	return list
}

func SplitInt64ToTwoInt32(input int64) (int64, int64) {
	return input & 0xFFFFFFFF, input >> 32
}

// ComposeInt64 rebuilds a 64-bit value split across two 32-bit halves.
func ComposeInt64(low, high uint32) int64 {
	return int64(high)<<32 | int64(low)
}

var (
	attrREs   = map[string]*regexp.Regexp{}
	attrREsMu sync.Mutex
)

// FindXMLAttr extracts a named attribute from loosely formed XML without
// parsing the whole document. Returns "" when absent.
func FindXMLAttr(data, name string) string {
	attrREsMu.Lock()
	re, ok := attrREs[name]
	if !ok {
		re = regexp.MustCompile(regexp.QuoteMeta(name) + `\s*=\s*"([^"]*)"`)
		attrREs[name] = re
	}
	attrREsMu.Unlock()

	m := re.FindStringSubmatch(data)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}
