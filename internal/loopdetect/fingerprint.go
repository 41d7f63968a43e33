package loopdetect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func hashText(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func hashArgs(args map[string]any) string {
	h := sha256.Sum256([]byte(fmt.Sprint(args)))
	return hex.EncodeToString(h[:])
}
