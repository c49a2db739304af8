package charts

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Period selects the threat breakdown window.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod maps s to a Period. Unknown values fall back to today.
func ParsePeriod(s string) (Period, bool) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return p, true
	default:
		return PeriodToday, false
	}
}

// ThreatLabels are the doughnut segments in order.
var ThreatLabels = []string{"Malicious", "Phishing", "Suspicious", "Detected", "Malware"}

// ThreatSeries returns the breakdown for a period.
func ThreatSeries(p Period) []int {
	switch p {
	case PeriodWeek:
		return []int{35, 20, 18, 17, 10}
	case PeriodMonth:
		return []int{40, 22, 15, 13, 10}
	default:
		return []int{30, 25, 20, 15, 10}
	}
}

// Theme is the page colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps s to a Theme. Anything but "dark" is light.
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(ThemeDark)) {
		return ThemeDark
	}
	return ThemeLight
}

// TextColor is the axis tick colour for the theme.
func (t Theme) TextColor() string {
	if t == ThemeDark {
		return "#e2e8f0"
	}
	return "#64748b"
}

// GridColor is the grid line colour for the theme.
func (t Theme) GridColor() string {
	if t == ThemeDark {
		return "#374151"
	}
	return "#f1f5f9"
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

const (
	tooltipBackground = "#1f2937"
	tooltipBorder     = "#374151"
	white             = "#ffffff"
	easeOutQuart      = "easeOutQuart"

	// DefaultAnimationMS is the base animation duration.
	DefaultAnimationMS = 1000

	// DriftChance is the probability that one drift tick changes the series.
	DriftChance = 0.3
)

var trafficPattern = []int{25, 30, 38, 30, 26, 42, 32, 28, 36, 30, 28, 24, 33, 21, 12, 23, 10, 9, 8, 10, 9, 20, 18, 22}

var miniPatterns = map[string][]int{
	EmailTrendChart:      {10, 15, 12, 18, 25, 20, 30},
	QuarantineTrendChart: {15, 12, 8, 10, 6, 8, 5},
	CleanedTrendChart:    {8, 12, 15, 18, 22, 25, 28},
	UsersTrendChart:      {30, 30, 29, 31, 30, 30, 30},
}

// MaxTicks picks the x-axis tick limit for a viewport width. Unknown
// widths (<= 0) are treated as desktop.
func MaxTicks(width int) int {
	switch {
	case width <= 0:
		return 12
	case width < 480:
		return 6
	case width < 768:
		return 8
	case width < 1024:
		return 10
	default:
		return 12
	}
}

// Builder produces chart configs for one palette, theme and animation
// speed. The zero value is not usable; call NewBuilder.
type Builder struct {
	palette   Palette
	theme     Theme
	animation int
	rng       *rand.Rand
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

func WithTheme(t Theme) BuilderOption { return func(b *Builder) { b.theme = t } }

// WithAnimation sets the base animation duration in milliseconds.
func WithAnimation(ms int) BuilderOption {
	return func(b *Builder) {
		if ms >= 0 {
			b.animation = ms
		}
	}
}

// WithRand makes traffic jitter and drift reproducible.
func WithRand(r *rand.Rand) BuilderOption {
	return func(b *Builder) {
		if r != nil {
			b.rng = r
		}
	}
}

// NewBuilder returns a builder. A Builder is not safe for concurrent use.
func NewBuilder(p Palette, opts ...BuilderOption) *Builder {
	b := &Builder{
		palette:   p,
		theme:     ThemeLight,
		animation: DefaultAnimationMS,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Builder) Palette() Palette { return b.palette }
func (b *Builder) Theme() Theme     { return b.theme }

// SetTheme switches the theme used for new configs.
func (b *Builder) SetTheme(t Theme) { b.theme = t }

func (b *Builder) tooltip() Tooltip {
	return Tooltip{
		Enabled:         true,
		BackgroundColor: tooltipBackground,
		TitleColor:      white,
		BodyColor:       white,
		BorderColor:     tooltipBorder,
		BorderWidth:     1,
		CornerRadius:    12,
		Padding:         16,
		TitleFont:       &Font{Size: 16, Weight: "bold"},
		BodyFont:        &Font{Size: 14},
	}
}

func (b *Builder) scaled(f float64) int {
	return int(float64(b.animation) * f)
}

// Threat builds the doughnut for the given series.
func (b *Builder) Threat(series []int) Config {
	return Config{
		Type: "doughnut",
		Data: Data{
			Labels: append([]string(nil), ThreatLabels...),
			Datasets: []Dataset{{
				Data:             append([]int(nil), series...),
				BackgroundColor:  b.palette.Threats(),
				BorderWidth:      3,
				BorderColor:      white,
				Cutout:           "65%",
				HoverOffset:      8,
				HoverBorderWidth: 4,
			}},
		},
		Options: Options{
			Responsive: true,
			Plugins:    Plugins{Tooltip: b.tooltip()},
			Animation:  Animation{Duration: b.scaled(1.5), Easing: easeOutQuart},
		},
	}
}

// TrafficSeries returns 24 hourly labels starting at 08:00 and the jittered
// volumes for them.
func (b *Builder) TrafficSeries() ([]string, []int) {
	labels := make([]string, 0, len(trafficPattern))
	data := make([]int, 0, len(trafficPattern))
	for i, base := range trafficPattern {
		labels = append(labels, fmt.Sprintf("%02d:00", (i+8)%24))
		v := base + b.rng.IntN(8) - 4
		data = append(data, max(1, v))
	}
	return labels, data
}

// TrafficColor colours a bar by volume.
func (b *Builder) TrafficColor(v int) string {
	switch {
	case v > 35:
		return b.palette.Danger
	case v > 25:
		return b.palette.Warning
	default:
		return b.palette.Primary
	}
}

// Traffic builds the hourly volume bar chart for a viewport width.
func (b *Builder) Traffic(width int) Config {
	labels, data := b.TrafficSeries()
	colors := make([]string, len(data))
	for i, v := range data {
		colors[i] = b.TrafficColor(v)
	}
	tt := b.tooltip()
	tt.Mode = "index"
	tt.Intersect = ptr(false)

	font := &Font{Size: 13, Weight: "500"}
	return Config{
		Type: "bar",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:           "Email Volume",
				Data:            data,
				BackgroundColor: colors,
				BorderColor:     b.palette.Primary,
				BorderRadius:    6,
				BorderSkipped:   ptr(false),
				MaxBarThickness: 35,
				MinBarLength:    2,
			}},
		},
		Options: Options{
			Responsive: true,
			Plugins:    Plugins{Tooltip: tt},
			Scales: map[string]*Scale{
				"x": {
					Grid:   &Grid{Display: ptr(false)},
					Ticks:  &Ticks{Color: b.theme.TextColor(), Font: font, MaxTicksLimit: MaxTicks(width), MaxRotation: ptr(0)},
					Border: &Border{},
				},
				"y": {
					BeginAtZero: true,
					Max:         ptr(50),
					Grid:        &Grid{Color: b.theme.GridColor(), LineWidth: 1},
					Ticks:       &Ticks{Color: b.theme.TextColor(), Font: font, StepSize: 10},
					Border:      &Border{},
				},
			},
			Interaction: &Interaction{Intersect: false, Mode: "index"},
			Animation:   Animation{Duration: b.scaled(2), Easing: easeOutQuart},
		},
	}
}

// Mini builds one stat card sparkline.
func (b *Builder) Mini(id string) (Config, error) {
	pattern, ok := miniPatterns[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownChart, id)
	}
	var color string
	index := 0
	for i, mid := range MiniCharts {
		if mid == id {
			index = i
		}
	}
	switch id {
	case EmailTrendChart:
		color = b.palette.Primary
	case QuarantineTrendChart:
		color = b.palette.Danger
	case CleanedTrendChart:
		color = b.palette.Success
	default:
		color = b.palette.Warning
	}

	tt := Tooltip{Enabled: false}
	return Config{
		Type: "line",
		Data: Data{
			Labels: make([]string, len(pattern)),
			Datasets: []Dataset{{
				Data:             append([]int(nil), pattern...),
				BorderColor:      color,
				BackgroundColor:  fill(color),
				BorderWidth:      2,
				Fill:             true,
				Tension:          0.4,
				PointRadius:      ptr(0),
				PointHoverRadius: 4,
			}},
		},
		Options: Options{
			Responsive: true,
			Plugins:    Plugins{Tooltip: tt},
			Scales: map[string]*Scale{
				"x": {Display: ptr(false)},
				"y": {Display: ptr(false)},
			},
			Elements:  &Elements{Point: PointElement{Radius: 0}},
			Animation: Animation{Duration: b.animation, Delay: index * 200},
		},
	}, nil
}

// SecurityScore builds the monthly score trend.
func (b *Builder) SecurityScore() Config {
	tt := b.tooltip()
	tt.CornerRadius = 8
	tt.Padding = 12
	tt.TitleFont, tt.BodyFont = nil, nil

	font := &Font{Size: 12}
	return Config{
		Type: "line",
		Data: Data{
			Labels: []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul"},
			Datasets: []Dataset{{
				Label:            "Security Score",
				Data:             []int{75, 78, 82, 85, 83, 87, 85},
				BorderColor:      b.palette.Success,
				BackgroundColor:  fill(b.palette.Success),
				BorderWidth:      3,
				Fill:             true,
				Tension:          0.4,
				PointBackground:  b.palette.Success,
				PointBorderColor: white,
				PointBorderWidth: 2,
				PointRadius:      ptr(6),
				PointHoverRadius: 8,
			}},
		},
		Options: Options{
			Responsive: true,
			Plugins:    Plugins{Tooltip: tt},
			Scales: map[string]*Scale{
				"x": {
					Grid:  &Grid{Display: ptr(false)},
					Ticks: &Ticks{Color: b.theme.TextColor(), Font: font},
				},
				"y": {
					Min:   ptr(60),
					Max:   ptr(100),
					Grid:  &Grid{Color: b.theme.GridColor()},
					Ticks: &Ticks{Color: b.theme.TextColor(), Font: font},
				},
			},
			Animation: Animation{Duration: b.scaled(1.5), Easing: easeOutQuart},
		},
	}
}

// Build creates the config for any chart id.
func (b *Builder) Build(id string, threat []int, width int) (Config, error) {
	switch id {
	case ThreatChart:
		return b.Threat(threat), nil
	case TrafficChart:
		return b.Traffic(width), nil
	case SecurityScoreChart:
		return b.SecurityScore(), nil
	default:
		return b.Mini(id)
	}
}

// ApplyTheme recolours the ticks and grid lines of every scale in cfg.
func ApplyTheme(cfg *Config, t Theme) {
	for _, s := range cfg.Options.Scales {
		if s.Ticks != nil {
			s.Ticks.Color = t.TextColor()
		}
		if s.Grid != nil && s.Grid.Color != "" {
			s.Grid.Color = t.GridColor()
		}
	}
}

// Drift nudges each value of series by at most one, never below zero. It
// reports false and leaves series untouched when this tick does not fire.
func (b *Builder) Drift(series []int) ([]int, bool) {
	if b.rng.Float64() >= DriftChance {
		return series, false
	}
	out := make([]int, len(series))
	for i, v := range series {
		change := (b.rng.Float64() - 0.5) * 2
		out[i] = max(0, int(math.Round(float64(v)+change)))
	}
	return out, true
}

// StatChance is the per-card probability that a stat value moves on a
// drift tick.
const StatChance = 0.2

// DriftStats moves each stat card value by -3..+2 with probability
// StatChance, never below zero.
func (b *Builder) DriftStats(values []int) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = v
		if b.rng.Float64() >= StatChance {
			continue
		}
		change := int(math.Floor((b.rng.Float64() - 0.5) * 6))
		out[i] = max(0, v+change)
	}
	return out
}
