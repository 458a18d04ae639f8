package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cudev/game-feed/app/feed"
	"github.com/mattn/go-runewidth"
)

const (
	keyWidth   = 16
	titleWidth = 40
	linkWidth  = 60
)

// writeTable prints one row per record. Columns are padded by display width
// so titles with wide runes stay aligned.
func writeTable(w io.Writer, records []feed.Record) {
	sourceWidth := len("SOURCE")
	for _, record := range records {
		sourceWidth = max(sourceWidth, runewidth.StringWidth(record.Source))
	}
	posWidth := max(len("#"), len(strconv.Itoa(len(records))))

	writeRow(w, []string{"#", "SOURCE", "KEY", "TITLE", "LINK"}, []int{posWidth, sourceWidth, keyWidth, titleWidth, linkWidth})
	for i, record := range records {
		title, link := describe(record)
		writeRow(w,
			[]string{strconv.Itoa(i), record.Source, record.Key, title, link},
			[]int{posWidth, sourceWidth, keyWidth, titleWidth, linkWidth})
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		cell = strings.Join(strings.Fields(cell), " ")
		padded[i] = runewidth.FillRight(runewidth.Truncate(cell, widths[i], "…"), widths[i])
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(padded, "  "), " "))
}

func describe(record feed.Record) (string, string) {
	switch value := record.Value.(type) {
	case *feed.Game:
		return value.Title, value.Link
	case map[string]any:
		title, _ := value["title"].(string)
		return title, ""
	case string:
		return value, ""
	default:
		return fmt.Sprint(value), ""
	}
}
