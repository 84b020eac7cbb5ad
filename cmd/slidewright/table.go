package main

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/microcosm-cc/bluemonday"

	"github.com/rhuss/slidewright/pkg/api"
)

var plainText = bluemonday.StrictPolicy()

// summaryTable renders one row per slide followed by a footer with the
// generation totals.
func summaryTable(resp *api.GenerationResponse) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.SetTitle(resp.Presentation.Title)
	tw.AppendHeader(table.Row{"#", "Title", "Words", "Notes"})

	words := 0
	for _, s := range resp.Presentation.Slides {
		n := wordCount(s.Content)
		words += n
		notes := "-"
		if strings.TrimSpace(s.Notes) != "" {
			notes = "yes"
		}
		tw.AppendRow(table.Row{s.SlideNumber, s.Title, n, notes})
	}

	md := resp.Metadata
	source := "generated"
	if md.Cached {
		source = "cached"
	}
	tw.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%s in %s, %s tokens", source, formatSeconds(md.GenerationTimeSeconds), humanize.Comma(int64(md.TokenUsage.TotalTokens))),
		humanize.Comma(int64(words)),
		"",
	})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, WidthMax: 60},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}

// wordCount counts the visible words of an HTML fragment.
func wordCount(fragment string) int {
	spaced := strings.ReplaceAll(fragment, ">", "> ")
	return len(strings.Fields(html.UnescapeString(plainText.Sanitize(spaced))))
}

func formatSeconds(s float64) string {
	d := time.Duration(s * float64(time.Second))
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return d.Round(10 * time.Millisecond).String()
}
