package file

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

const (
	maxFilenameRunes = 255
	fallbackFilename = "upload"
)

// NormalizeFilename turns an untrusted client filename into display-safe
// UTF-8 text.
//
// Raw bytes that are not valid UTF-8 are decoded as Latin-1. Valid UTF-8 that
// is really UTF-8 bytes which were mis-decoded as Latin-1 along the way
// (e.g. "Ð¾Ñ\u0082Ñ\u0087ÐµÑ\u0082.pdf") is re-decoded. Directory
// components and control characters are dropped and the result is NFC.
func NormalizeFilename(raw string) string {
	name := raw
	if !utf8.ValidString(name) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().String(name); err == nil {
			name = decoded
		}
	} else if fixed, ok := undoLatin1Mojibake(name); ok {
		name = fixed
	}

	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, name)

	name = strings.TrimSpace(norm.NFC.String(name))
	if runes := []rune(name); len(runes) > maxFilenameRunes {
		name = string(runes[:maxFilenameRunes])
	}

	if name == "" || name == "." || name == ".." {
		return fallbackFilename
	}
	return name
}

// undoLatin1Mojibake re-encodes s as Latin-1 and reports the result when that
// yields multi-byte UTF-8.
func undoLatin1Mojibake(s string) (string, bool) {
	highBit := false
	for _, r := range s {
		if r > 0xFF {
			return "", false
		}
		if r >= 0x80 {
			highBit = true
		}
	}
	if !highBit {
		return "", false
	}

	encoded, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(encoded) || encoded == s {
		return "", false
	}
	return encoded, true
}
