// Package charts builds the Chart.js configuration objects rendered by the
// dashboard and tracks the chart instances of a session.
package charts

// Chart ids. They double as canvas element ids in the page.
const (
	ThreatChart          = "threatChart"
	TrafficChart         = "trafficChart"
	EmailTrendChart      = "emailTrendChart"
	QuarantineTrendChart = "quarantineTrendChart"
	CleanedTrendChart    = "cleanedTrendChart"
	UsersTrendChart      = "usersTrendChart"
	SecurityScoreChart   = "securityScoreChart"
)

// MiniCharts lists the stat card sparklines in card order.
var MiniCharts = []string{EmailTrendChart, QuarantineTrendChart, CleanedTrendChart, UsersTrendChart}

// Config is the declarative object handed to `new Chart(ctx, config)`.
type Config struct {
	Type    string  `json:"type"`
	Data    Data    `json:"data"`
	Options Options `json:"options"`
}

type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset covers the doughnut, bar and line properties used here.
// BackgroundColor is either a single colour or one colour per point.
type Dataset struct {
	Label            string  `json:"label,omitempty"`
	Data             []int   `json:"data"`
	BackgroundColor  any     `json:"backgroundColor,omitempty"`
	BorderColor      string  `json:"borderColor,omitempty"`
	BorderWidth      int     `json:"borderWidth"`
	BorderRadius     int     `json:"borderRadius,omitempty"`
	BorderSkipped    *bool   `json:"borderSkipped,omitempty"`
	MaxBarThickness  int     `json:"maxBarThickness,omitempty"`
	MinBarLength     int     `json:"minBarLength,omitempty"`
	Cutout           string  `json:"cutout,omitempty"`
	HoverOffset      int     `json:"hoverOffset,omitempty"`
	HoverBorderWidth int     `json:"hoverBorderWidth,omitempty"`
	Fill             bool    `json:"fill,omitempty"`
	Tension          float64 `json:"tension,omitempty"`
	PointRadius      *int    `json:"pointRadius,omitempty"`
	PointHoverRadius int     `json:"pointHoverRadius,omitempty"`
	PointBackground  string  `json:"pointBackgroundColor,omitempty"`
	PointBorderColor string  `json:"pointBorderColor,omitempty"`
	PointBorderWidth int     `json:"pointBorderWidth,omitempty"`
}

type Options struct {
	Responsive          bool              `json:"responsive"`
	MaintainAspectRatio bool              `json:"maintainAspectRatio"`
	Plugins             Plugins           `json:"plugins"`
	Scales              map[string]*Scale `json:"scales,omitempty"`
	Interaction         *Interaction      `json:"interaction,omitempty"`
	Elements            *Elements         `json:"elements,omitempty"`
	Animation           Animation         `json:"animation"`
}

type Plugins struct {
	Legend  Legend  `json:"legend"`
	Tooltip Tooltip `json:"tooltip"`
}

type Legend struct {
	Display bool `json:"display"`
}

type Tooltip struct {
	Enabled         bool   `json:"enabled"`
	Mode            string `json:"mode,omitempty"`
	Intersect       *bool  `json:"intersect,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TitleColor      string `json:"titleColor,omitempty"`
	BodyColor       string `json:"bodyColor,omitempty"`
	BorderColor     string `json:"borderColor,omitempty"`
	BorderWidth     int    `json:"borderWidth,omitempty"`
	CornerRadius    int    `json:"cornerRadius,omitempty"`
	Padding         int    `json:"padding,omitempty"`
	TitleFont       *Font  `json:"titleFont,omitempty"`
	BodyFont        *Font  `json:"bodyFont,omitempty"`
}

type Font struct {
	Size   int    `json:"size"`
	Weight string `json:"weight,omitempty"`
}

type Scale struct {
	Display     *bool   `json:"display,omitempty"`
	BeginAtZero bool    `json:"beginAtZero,omitempty"`
	Min         *int    `json:"min,omitempty"`
	Max         *int    `json:"max,omitempty"`
	Grid        *Grid   `json:"grid,omitempty"`
	Ticks       *Ticks  `json:"ticks,omitempty"`
	Border      *Border `json:"border,omitempty"`
}

type Grid struct {
	Display   *bool  `json:"display,omitempty"`
	Color     string `json:"color,omitempty"`
	LineWidth int    `json:"lineWidth,omitempty"`
}

type Ticks struct {
	Color         string `json:"color,omitempty"`
	Font          *Font  `json:"font,omitempty"`
	MaxTicksLimit int    `json:"maxTicksLimit,omitempty"`
	MaxRotation   *int   `json:"maxRotation,omitempty"`
	StepSize      int    `json:"stepSize,omitempty"`
}

type Border struct {
	Display bool `json:"display"`
}

type Interaction struct {
	Intersect bool   `json:"intersect"`
	Mode      string `json:"mode"`
}

type Elements struct {
	Point PointElement `json:"point"`
}

type PointElement struct {
	Radius int `json:"radius"`
}

type Animation struct {
	Duration int    `json:"duration"`
	Easing   string `json:"easing,omitempty"`
	Delay    int    `json:"delay,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// Total sums the first dataset. The doughnut shows it in its centre.
func (c Config) Total() int {
	if len(c.Data.Datasets) == 0 {
		return 0
	}
	total := 0
	for _, v := range c.Data.Datasets[0].Data {
		total += v
	}
	return total
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy of c. Nothing in the copy shares memory with c.
func (c Config) Clone() Config {
	out := c
	out.Data.Labels = cloneSlice(c.Data.Labels)
	if c.Data.Datasets != nil {
		out.Data.Datasets = make([]Dataset, len(c.Data.Datasets))
		for i, ds := range c.Data.Datasets {
			out.Data.Datasets[i] = ds.clone()
		}
	}
	out.Options = c.Options.clone()
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func (d Dataset) clone() Dataset {
	out := d
	out.Data = cloneSlice(d.Data)
	if colors, ok := d.BackgroundColor.([]string); ok {
		out.BackgroundColor = cloneSlice(colors)
	}
	out.BorderSkipped = clonePtr(d.BorderSkipped)
	out.PointRadius = clonePtr(d.PointRadius)
	return out
}

func (o Options) clone() Options {
	out := o
	out.Plugins.Tooltip.Intersect = clonePtr(o.Plugins.Tooltip.Intersect)
	out.Plugins.Tooltip.TitleFont = clonePtr(o.Plugins.Tooltip.TitleFont)
	out.Plugins.Tooltip.BodyFont = clonePtr(o.Plugins.Tooltip.BodyFont)
	if o.Scales != nil {
		out.Scales = make(map[string]*Scale, len(o.Scales))
		for k, s := range o.Scales {
			out.Scales[k] = s.clone()
		}
	}
	out.Interaction = clonePtr(o.Interaction)
	out.Elements = clonePtr(o.Elements)
	return out
}

func (s *Scale) clone() *Scale {
	if s == nil {
		return nil
	}
	out := *s
	out.Display = clonePtr(s.Display)
	out.Min = clonePtr(s.Min)
	out.Max = clonePtr(s.Max)
	if s.Grid != nil {
		g := *s.Grid
		g.Display = clonePtr(s.Grid.Display)
		out.Grid = &g
	}
	if s.Ticks != nil {
		t := *s.Ticks
		t.Font = clonePtr(s.Ticks.Font)
		t.MaxRotation = clonePtr(s.Ticks.MaxRotation)
		out.Ticks = &t
	}
	out.Border = clonePtr(s.Border)
	return &out
}
