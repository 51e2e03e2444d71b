package loader

import (
	"errors"
	"unicode/utf8"
)

func parseText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid utf-8")
	}
	return string(data), nil
}
