package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

type rtfBackend struct{}

// NewRTFBackend strips RTF control words and keeps the body text.
func NewRTFBackend() Backend {
	return rtfBackend{}
}

func (rtfBackend) Name() string    { return "rtf-text" }
func (rtfBackend) Available() bool { return true }

func (rtfBackend) Extract(_ context.Context, src Source) (string, error) {
	data, err := src.bytes()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(strings.TrimSpace(string(data)), `{\rtf`) {
		return "", errors.New("missing {\\rtf header")
	}
	return stripRTF(string(data)), nil
}

// destinations whose content is not document text
var rtfSkipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "footer": true, "headerl": true, "headerr": true,
	"footerl": true, "footerr": true, "listtable": true, "listoverridetable": true,
	"rsidtbl": true, "generator": true, "xmlnstbl": true, "themedata": true,
	"colorschememapping": true, "latentstyles": true, "datastore": true,
}

func stripRTF(s string) string {
	type group struct {
		skip bool
		uc   int
	}

	var (
		sb      strings.Builder
		stack   []group
		cur     = group{uc: 1}
		pending int // replacement chars still to drop after \uN
	)

	for i := 0; i < len(s); {
		c := s[i]
		switch c {
		case '{':
			stack = append(stack, cur)
			i++
		case '}':
			if n := len(stack); n > 0 {
				cur = stack[n-1]
				stack = stack[:n-1]
			}
			pending = 0
			i++
		case '\\':
			i++
			if i >= len(s) {
				break
			}
			switch next := s[i]; {
			case next == '\\' || next == '{' || next == '}':
				if !cur.skip {
					sb.WriteByte(next)
				}
				i++
			case next == '*':
				cur.skip = true
				i++
			case next == '\'':
				if i+3 <= len(s) {
					if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
						if pending > 0 {
							pending--
						} else if !cur.skip {
							sb.WriteRune(rune(v))
						}
					}
				}
				i += 3
			case next == '~':
				if !cur.skip {
					sb.WriteByte(' ')
				}
				i++
			case next == '\n' || next == '\r':
				if !cur.skip {
					sb.WriteByte('\n')
				}
				i++
			case isASCIILetter(next):
				start := i
				for i < len(s) && isASCIILetter(s[i]) {
					i++
				}
				word := s[start:i]

				numStart := i
				if i < len(s) && s[i] == '-' {
					i++
				}
				for i < len(s) && s[i] >= '0' && s[i] <= '9' {
					i++
				}
				param, hasParam := 0, i > numStart
				if hasParam {
					param, _ = strconv.Atoi(s[numStart:i])
				}
				if i < len(s) && s[i] == ' ' {
					i++
				}

				switch {
				case rtfSkipDestinations[word]:
					cur.skip = true
				case cur.skip:
				case word == "par" || word == "line" || word == "sect" || word == "page":
					sb.WriteByte('\n')
				case word == "tab" || word == "cell":
					sb.WriteByte('\t')
				case word == "row":
					sb.WriteByte('\n')
				case word == "uc" && hasParam:
					cur.uc = param
				case word == "u" && hasParam:
					if param < 0 {
						param += 65536
					}
					sb.WriteRune(rune(param))
					pending = cur.uc
				}
			default:
				i++
			}
		case '\r', '\n':
			i++
		default:
			if pending > 0 {
				pending--
				i++
				continue
			}
			r, size := utf8.DecodeRuneInString(s[i:])
			if !cur.skip {
				sb.WriteRune(r)
			}
			i += size
		}
	}

	return strings.TrimSpace(sb.String())
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
