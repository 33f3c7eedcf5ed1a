package dashboard

import (
	"os"
	"strings"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
