// Package fusion implements the fusion engine: a latest-value table fed by
// bus events, combined per named channel via one of six strategies into
// FusedSignals republished onto the bus as fusion.<channel> events.
// Grounded on original_source/core/fusion.py and SPEC_FULL.md §4.3.
package fusion

import (
	"math"
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// Engine owns the latest-value table and the configured fusion rules.
type Engine struct {
	bus *bus.Bus
	cfg config.FusionConfig

	maxAge time.Duration

	table map[string]events.SignalValue // key: detector + "." + field

	// channels holds each rule's last successfully published FusedSignal,
	// keyed by rule.Signal, so a rule that drops below MinSources can still
	// degrade-then-evict its prior reading instead of freezing it forever.
	channels map[string]events.FusedSignal

	// computed holds the named closures the "computed" strategy dispatches
	// to (SPEC_FULL.md §4.3's apnea_risk formula and any future additions).
	computed map[string]func([]events.SignalValue) (events.Value, bool)
}

// New builds a fusion engine from configuration.
func New(b *bus.Bus, cfg config.FusionConfig) *Engine {
	e := &Engine{
		bus:      b,
		cfg:      cfg,
		maxAge:   time.Duration(cfg.SignalMaxAgeSeconds * float64(time.Second)),
		table:    make(map[string]events.SignalValue),
		channels: make(map[string]events.FusedSignal),
	}
	e.computed = map[string]func([]events.SignalValue) (events.Value, bool){
		"apnea_risk": apneaRisk,
	}
	return e
}

func sourceKey(detector, field string) string { return detector + "." + field }

// Ingest records a raw detector Event's fields into the latest-value table.
// Called once per event delivered on bus.TopicEvents.
func (e *Engine) Ingest(ev events.Event) {
	for field, v := range ev.Value {
		e.table[sourceKey(ev.Detector, field)] = events.SignalValue{
			Detector:   ev.Detector,
			Field:      field,
			Value:      v,
			Confidence: ev.Confidence,
			Timestamp:  ev.Timestamp,
		}
	}
}

// Evaluate runs every configured rule against the current table and
// publishes any channel whose gating conditions are satisfied. Stale
// sources (older than SignalMaxAgeSeconds) are excluded before strategy
// evaluation.
//
// A rule that drops below MinSources produces no fresh update, per
// SPEC_FULL.md §4.3: its last published FusedSignal is left untouched in
// e.channels until SignalMaxAgeSeconds has elapsed since that reading was
// computed, at which point it is republished once with Degraded=true and
// evicted, so stale-but-plausible readings don't linger forever for alert
// rules to keep reading as good data.
func (e *Engine) Evaluate(now time.Time) []events.FusedSignal {
	var out []events.FusedSignal
	for _, rule := range e.cfg.Rules {
		fresh := e.freshSources(rule, now)
		if len(fresh) < rule.MinSources {
			if signal, ok := e.degradeChannel(rule, now); ok {
				out = append(out, signal)
				e.bus.Publish(bus.TopicChannels, "fusion", signal.ToEvent())
			}
			continue
		}

		signal, ok := e.applyStrategy(rule, fresh, now)
		if !ok {
			continue
		}
		e.channels[rule.Signal] = signal
		out = append(out, signal)
		e.bus.Publish(bus.TopicChannels, "fusion", signal.ToEvent())
	}
	return out
}

// degradeChannel implements the eviction half of the channel lifecycle: if
// rule.Signal has a prior reading and it has aged past e.maxAge, mark it
// degraded, publish it exactly once, and remove it so subsequent ticks stay
// silent instead of repeating the same degraded signal forever.
func (e *Engine) degradeChannel(rule config.FusionRule, now time.Time) (events.FusedSignal, bool) {
	prev, ok := e.channels[rule.Signal]
	if !ok {
		return events.FusedSignal{}, false
	}
	if now.Sub(prev.Timestamp) <= e.maxAge {
		return events.FusedSignal{}, false
	}
	delete(e.channels, rule.Signal)
	prev.Degraded = true
	prev.Timestamp = now
	return prev, true
}

func (e *Engine) freshSources(rule config.FusionRule, now time.Time) []events.SignalValue {
	var fresh []events.SignalValue
	for _, src := range rule.Sources {
		sv, ok := e.table[sourceKey(src.Detector, src.Field)]
		if !ok {
			continue
		}
		if sv.Stale(now, e.maxAge) {
			continue
		}
		fresh = append(fresh, sv)
	}
	return fresh
}

func sourceWeight(rule config.FusionRule, detector string) float64 {
	for _, s := range rule.Sources {
		if s.Detector == detector {
			if s.Weight == 0 {
				return 1.0
			}
			return s.Weight
		}
	}
	return 1.0
}

func (e *Engine) applyStrategy(rule config.FusionRule, sources []events.SignalValue, now time.Time) (events.FusedSignal, bool) {
	switch rule.Strategy {
	case "weighted_average":
		return e.weightedAverage(rule, sources, now)
	case "best_confidence":
		return e.bestConfidence(rule, sources, now)
	case "voting":
		return e.voting(rule, sources, now)
	case "any":
		return e.anyStrategy(rule, sources, now)
	case "all":
		return e.allStrategy(rule, sources, now)
	case "computed":
		return e.computedStrategy(rule, sources, now)
	default:
		return events.FusedSignal{}, false
	}
}

func (e *Engine) weightedAverage(rule config.FusionRule, sources []events.SignalValue, now time.Time) (events.FusedSignal, bool) {
	var weightedSum, weightTotal, confSum float64
	var names []string
	samples := make([]float64, 0, len(sources))
	bestWeight := -1.0
	var bestValue float64

	for _, sv := range sources {
		f, ok := sv.Value.Float()
		if !ok {
			continue
		}
		w := sourceWeight(rule, sv.Detector)
		weightedSum += f * w * sv.Confidence
		weightTotal += w * sv.Confidence
		confSum += sv.Confidence
		names = append(names, sv.Detector)
		samples = append(samples, f)
		if w > bestWeight {
			bestWeight = w
			bestValue = f
		}
	}
	if weightTotal == 0 {
		return events.FusedSignal{}, false
	}

	value := weightedSum / weightTotal
	agreement := agreementScore(samples, rule.MaxDeviation)
	degraded := len(names) == 1

	// Sources that stray past disagreement_limit aren't blended: fall back
	// to the highest-weight reading and flag the channel degraded.
	if limit := rule.DisagreementLimit; limit > 0 && disagreementSpread(samples) > limit {
		degraded = true
		value = bestValue
	}

	baseConfidence := confSum / float64(len(names))
	confidence := e.confidenceAdjustment(baseConfidence, agreement, rule.AgreementThreshold, len(names))

	return events.FusedSignal{
		Name:       rule.Signal,
		Value:      events.NumberValue(value),
		Confidence: clamp01(confidence),
		Timestamp:  now,
		Sources:    names,
		Agreement:  agreement,
		Degraded:   degraded,
	}, true
}

func (e *Engine) bestConfidence(rule config.FusionRule, sources []events.SignalValue, now time.Time) (events.FusedSignal, bool) {
	best := sources[0]
	for _, sv := range sources[1:] {
		if sv.Confidence > best.Confidence {
			best = sv
		}
	}
	return events.FusedSignal{
		Name:       rule.Signal,
		Value:      best.Value,
		Confidence: best.Confidence,
		Timestamp:  now,
		Sources:    []string{best.Detector},
	}, true
}

func (e *Engine) voting(rule config.FusionRule, sources []events.SignalValue, now time.Time) (events.FusedSignal, bool) {
	trueCount, total := 0, 0
	var names []string
	for _, sv := range sources {
		b, ok := sv.Value.Truth()
		if !ok {
			continue
		}
		total++
		names = append(names, sv.Detector)
		if b {
			trueCount++
		}
	}
	if total == 0 {
		return events.FusedSignal{}, false
	}
	majority := trueCount*2 > total
	confidence := float64(trueCount) / float64(total)
	if !majority {
		confidence = 1 - confidence
	}
	return events.FusedSignal{
		Name:       rule.Signal,
		Value:      events.BoolValue(majority),
		Confidence: confidence,
		Timestamp:  now,
		Sources:    names,
	}, true
}

func (e *Engine) anyStrategy(rule config.FusionRule, sources []events.SignalValue, now time.Time) (events.FusedSignal, bool) {
	var names []string
	any := false
	var maxConf float64
	for _, sv := range sources {
		b, ok := sv.Value.Truth()
		names = append(names, sv.Detector)
		if ok && b {
			any = true
			if sv.Confidence > maxConf {
				maxConf = sv.Confidence
			}
		}
	}
	return events.FusedSignal{
		Name: rule.Signal, Value: events.BoolValue(any), Confidence: maxConf, Timestamp: now, Sources: names,
	}, true
}

func (e *Engine) allStrategy(rule config.FusionRule, sources []events.SignalValue, now time.Time) (events.FusedSignal, bool) {
	var names []string
	all := true
	minConf := 1.0
	for _, sv := range sources {
		b, ok := sv.Value.Truth()
		names = append(names, sv.Detector)
		if !ok || !b {
			all = false
		}
		if sv.Confidence < minConf {
			minConf = sv.Confidence
		}
	}
	return events.FusedSignal{
		Name: rule.Signal, Value: events.BoolValue(all), Confidence: minConf, Timestamp: now, Sources: names,
	}, true
}

// computedStrategy dispatches to one of the named closures in e.computed,
// selected by rule.Computed (e.g. "apnea_risk"). Unlike the alert engine's
// per-condition Expression field, fusion's computed channels are packaged
// Go formulas rather than user-authored Lua, since a fusion channel runs on
// every tick and needs to stay allocation-cheap.
func (e *Engine) computedStrategy(rule config.FusionRule, sources []events.SignalValue, now time.Time) (events.FusedSignal, bool) {
	fn, ok := e.computed[rule.Computed]
	if !ok {
		return events.FusedSignal{}, false
	}
	value, ok := fn(sources)
	if !ok {
		return events.FusedSignal{}, false
	}

	confSum := 0.0
	var names []string
	for _, sv := range sources {
		confSum += sv.Confidence
		names = append(names, sv.Detector)
	}

	return events.FusedSignal{
		Name:       rule.Signal,
		Value:      value,
		Confidence: confSum / float64(len(sources)),
		Timestamp:  now,
		Sources:    names,
	}, true
}

// apneaRisk combines respiration amplitude and movement level into a 0-1
// risk score: low amplitude with low movement (still, shallow-or-absent
// breathing) scores highest. Grounded on original_source/core/fusion.py's
// packaged apnea_risk computed channel.
func apneaRisk(sources []events.SignalValue) (events.Value, bool) {
	var amp, move float64
	haveAmp, haveMove := false, false
	for _, sv := range sources {
		switch sv.Field {
		case "respiration_amp":
			if f, ok := sv.Value.Float(); ok {
				amp = f
				haveAmp = true
			}
		case "movement_level":
			if f, ok := sv.Value.Float(); ok {
				move = f
				haveMove = true
			}
		}
	}
	if !haveAmp || !haveMove {
		return events.Value{}, false
	}
	risk := (1 - amp) * (1 - move)
	return events.NumberValue(clamp01(risk)), true
}

// agreementScore is 1.0 when all sources agree exactly, decaying with the
// samples' standard deviation relative to the rule's configured
// max_deviation (e.g. 5 BPM for respiration).
func agreementScore(samples []float64, maxDev float64) float64 {
	if len(samples) < 2 {
		return 1.0
	}
	mean := 0.0
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(samples))

	if maxDev <= 0 {
		maxDev = 1.0
	}
	return clamp01(1 - math.Sqrt(variance)/maxDev)
}

// disagreementSpread is the raw max-min gap among fresh readings, checked
// against a rule's disagreement_limit to decide whether to fall back to the
// highest-weight source instead of blending.
func disagreementSpread(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	lo, hi := samples[0], samples[0]
	for _, s := range samples[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return hi - lo
}

// confidenceAdjustment applies spec.md §4.3's additive cross-validation
// bonus/penalty: +AgreementBonus once agreement clears the rule's
// agreement_threshold, -DisagreementPenalty when it falls below 0.5, and a
// further -0.1 whenever only one source contributed to the reading.
func (e *Engine) confidenceAdjustment(base, agreement, threshold float64, sourceCount int) float64 {
	if threshold <= 0 {
		threshold = 0.8
	}
	adjusted := base
	if e.cfg.CrossValidationEnabled {
		switch {
		case agreement >= threshold:
			adjusted += e.cfg.AgreementBonus
		case agreement < 0.5:
			adjusted -= e.cfg.DisagreementPenalty
		}
	}
	if sourceCount == 1 {
		adjusted -= 0.1
	}
	return clamp01(adjusted)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
