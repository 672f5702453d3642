package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/huanfeng/entwine-cli/pkg/gamepath"
)

func modsPathOf(gamePath string) string {
	return gamepath.ModsPath(gamePath)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func checkmark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func printKV(key string, value interface{}) {
	fmt.Printf("  %-16s %v\n", key+":", value)
}
