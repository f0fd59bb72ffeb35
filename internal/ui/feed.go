package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/dealfeed/internal/model"
)

// FormatPrice renders minor units as "1,299.90".
func FormatPrice(minor int64) string {
	return humanize.FormatFloat("#,###.##", float64(minor)/100)
}

// RenderFeed renders the offer list, scrolled so the cursor stays visible.
func RenderFeed(items []model.Offer, cursor, width, height int) string {
	if len(items) == 0 {
		return HelpStyle.Render("No deals yet. Press 'r' to rebuild.")
	}

	if height < 1 {
		height = 1
	}
	offset := 0
	if cursor >= height {
		offset = cursor - height + 1
	}

	var b strings.Builder
	for i := offset; i < len(items) && i < offset+height; i++ {
		b.WriteString(renderOffer(items[i], i == cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

func renderOffer(o model.Offer, selected bool, width int) string {
	badge := StoreBadge.Render(o.Store)

	price := Price.Render(FormatPrice(o.PriceFinal))
	if o.PriceBase > o.PriceFinal {
		price = WasPrice.Render(FormatPrice(o.PriceBase)) + " " + price
	}
	if pct, ok := o.EffectiveDiscount(); ok && pct > 0 {
		price += " " + Discount.Render(fmt.Sprintf("-%d%%", pct))
	}

	titleWidth := width - lipgloss.Width(badge) - lipgloss.Width(price) - 4
	if titleWidth < 20 {
		titleWidth = 20
	}
	title := o.Title
	if utf8.RuneCountInString(title) > titleWidth {
		runes := []rune(title)
		title = string(runes[:titleWidth-3]) + "..."
	}

	style := NormalItem
	if selected {
		style = SelectedItem
	}
	return badge + style.Render(title) + " " + price
}

// RenderStatusBar renders the bottom bar with position and key hints.
func RenderStatusBar(cursor, total, width int, loading string) string {
	position := fmt.Sprintf(" %d/%d ", cursor+1, total)
	if total == 0 {
		position = " 0/0 "
	}
	if loading != "" {
		position = " " + loading + " "
	}

	keys := []string{
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("r") + StatusBarText.Render(":rebuild"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(keys, " ")

	padding := width - lipgloss.Width(position) - lipgloss.Width(keyHints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(position + strings.Repeat(" ", padding) + keyHints)
}
