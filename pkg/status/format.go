package status

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/walteh/datasync/pkg/engine"
)

// 🎯 FormatItem formats one item line with a colored prefix symbol
func FormatItem(path string, st engine.ItemStatus) string {
	var prefix string
	switch st {
	case engine.StatusCopied:
		prefix = color.GreenString("✓")
	case engine.StatusMoved:
		prefix = color.CyanString("➜")
	case engine.StatusFailed:
		prefix = color.RedString("✗")
	default:
		prefix = color.HiBlackString("-")
	}
	return fmt.Sprintf("%s %s %s", prefix, st, path)
}

// 📊 FormatProgress formats a running count with percentage
func FormatProgress(current, total int) string {
	var percentage float64
	if total == 0 {
		percentage = 0
		if current > 0 {
			percentage = 100
		}
	} else {
		percentage = float64(current) / float64(total) * 100
	}
	return fmt.Sprintf("⏳ %d/%d (%.0f%%)", current, total, percentage)
}

// 🧾 FormatResult formats the end-of-operation summary line
func FormatResult(res engine.Result) string {
	switch res.Outcome {
	case engine.OutcomeSuccess:
		return color.GreenString("✅ %s", res.Message)
	case engine.OutcomePartialSuccess:
		return color.YellowString("⚠️  %s", res.Message)
	case engine.OutcomeCancelled:
		return color.YellowString("🛑 %s", res.Message)
	default:
		return color.RedString("❌ %s", res.Message)
	}
}
