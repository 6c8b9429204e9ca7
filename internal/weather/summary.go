package weather

import (
	"math"
	"time"
)

// Conditions это краткое описание погодных условий.
type Conditions struct {
	Main        *string `json:"main"`
	Description *string `json:"description"`
}

// Summary это сводка наблюдения, которая попадает в событие решения.
type Summary struct {
	At          string      `json:"at"`
	Place       *string     `json:"place"`
	Country     *string     `json:"country"`
	TempC       *float64    `json:"temp_c"`
	HumidityPct *float64    `json:"humidity_pct"`
	WindMS      *float64    `json:"wind_ms"`
	GustMS      *float64    `json:"gust_ms"`
	Rain1hMM    float64     `json:"rain_1h_mm"`
	CloudsPct   *float64    `json:"clouds_pct"`
	Conditions  *Conditions `json:"conditions"`
}

// Summarize строит сводку наблюдения на момент at. Отсутствующие значения остаются null,
// осадки за час по умолчанию равны нулю.
func Summarize(obs *Observation, at time.Time) Summary {
	s := Summary{At: at.UTC().Format("2006-01-02T15:04:05.000Z")}
	if obs == nil {
		return s
	}

	s.Place = obs.Name
	s.Country = obs.Sys.Country
	s.TempC = finite(obs.Main.Temp)
	s.HumidityPct = finite(obs.Main.Humidity)
	s.WindMS = finite(obs.Wind.Speed)
	s.GustMS = finite(obs.Wind.Gust)
	s.CloudsPct = finite(obs.Clouds.All)
	if obs.Rain != nil {
		if v := finite(obs.Rain.OneHour); v != nil {
			s.Rain1hMM = *v
		}
	}
	if len(obs.Weather) > 0 {
		s.Conditions = &Conditions{
			Main:        obs.Weather[0].Main,
			Description: obs.Weather[0].Description,
		}
	}
	return s
}

func finite(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := *p
	return &v
}
