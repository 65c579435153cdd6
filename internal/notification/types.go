package notification

import (
	"sort"
	"strings"
)

// DefaultIcon is used for types missing from the table.
const DefaultIcon = "/icons/bell.png"

// TypeInfo describes how a notification type is presented.
type TypeInfo struct {
	Name  string
	Icon  string
	Emoji string
	// Tones are the sweep frequencies in Hz, played in order.
	Tones []float64
}

var defaultType = TypeInfo{
	Name:  "default",
	Icon:  DefaultIcon,
	Emoji: "🔔",
	Tones: []float64{800, 1000, 1200},
}

var types = map[string]TypeInfo{
	"order":      {Name: "order", Icon: "/icons/order.png", Emoji: "📦", Tones: []float64{660, 880, 1100}},
	"invoice":    {Name: "invoice", Icon: "/icons/invoice.png", Emoji: "🧾", Tones: []float64{523, 659, 784}},
	"payment":    {Name: "payment", Icon: "/icons/payment.png", Emoji: "💳", Tones: []float64{523, 659, 784, 1047}},
	"offer":      {Name: "offer", Icon: "/icons/offer.png", Emoji: "🎁", Tones: []float64{880, 1175, 1397, 1760}},
	"collection": {Name: "collection", Icon: "/icons/collection.png", Emoji: "📅", Tones: []float64{587, 740, 880}},
	"success":    {Name: "success", Icon: "/icons/success.png", Emoji: "✅", Tones: []float64{523, 784, 1047}},
	"warning":    {Name: "warning", Icon: "/icons/warning.png", Emoji: "⚠️", Tones: []float64{440, 370, 440, 370}},
	"error":      {Name: "error", Icon: "/icons/error.png", Emoji: "❌", Tones: []float64{400, 300, 200}},
	"info":       {Name: "info", Icon: "/icons/info.png", Emoji: "ℹ️", Tones: []float64{700, 900, 1100}},
	"system":     {Name: "system", Icon: DefaultIcon, Emoji: "🔔", Tones: []float64{800, 1000, 1200}},
}

// Lookup returns presentation for typ, falling back to the bell.
func Lookup(typ string) TypeInfo {
	if info, ok := types[strings.ToLower(strings.TrimSpace(typ))]; ok {
		return info
	}
	return defaultType
}

// Types lists the known type names in order.
func Types() []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
