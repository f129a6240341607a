package engine

// QuickAction is one entry of the quick-action panel.
type QuickAction struct {
	Icon  string
	Label string
	Query string
}

// Catalog is the fixed set of example queries offered above the composer.
var Catalog = []QuickAction{
	{Icon: "⚡", Label: "DAM today", Query: "DAM rate today"},
	{Icon: "⏱", Label: "RTM last hour", Query: "RTM rate for last hour"},
	{Icon: "📈", Label: "DAM vs GDAM", Query: "Compare DAM and GDAM for last week"},
	{Icon: "📅", Label: "RTM on a date", Query: "RTM prices for 14 Nov 2025"},
	{Icon: "📉", Label: "Derivatives", Query: "Show derivative market for today"},
	{Icon: "📊", Label: "Charts", Query: "Generate charts"},
}
