// Package processor drives one detection stream through the threat pipeline:
// tracker, condition evaluators, state machines, arbiter and dispatcher, in
// that order, once per frame.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/safeguard-go/internal/arbiter"
	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/detection"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/evaluate"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
	"github.com/tphakala/safeguard-go/internal/threat"
	"github.com/tphakala/safeguard-go/internal/tracker"
)

// Options configures a Processor.
type Options struct {
	Settings *conf.Settings
	// Dispatcher emits alerts; nil creates one without delivery.
	Dispatcher *dispatch.Dispatcher
	Clock      threat.Clock
	Metrics    *metrics.ThreatMetrics
	Logger     logger.Logger
}

// Processor holds all per-stream state. It is not safe for concurrent use;
// callers serialize frames.
type Processor struct {
	threats *conf.ThreatSettings
	alarm   conf.AlarmSettings

	eval       *evaluate.Evaluator
	tracker    *tracker.Tracker
	registry   *threat.Registry
	dispatcher *dispatch.Dispatcher
	clock      threat.Clock
	metrics    *metrics.ThreatMetrics
	log        logger.Logger

	frame      uint64
	eyesClosed bool
}

// New creates a processor for one stream.
func New(opts Options) *Processor {
	s := opts.Settings
	if s == nil {
		s = conf.Defaults()
	}
	if opts.Clock == nil {
		opts.Clock = threat.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = dispatch.New(dispatch.Options{Alarm: s.Alarm, Clock: opts.Clock, Logger: opts.Logger})
	}

	threats := s.Threats
	registry := threat.NewRegistry(map[threat.Type]time.Duration{
		threat.EyesClosed: threats.Eyes.Duration,
		threat.Fire:       threats.Fire.Duration,
		threat.Weapon:     threats.Weapon.Duration,
	}, threats.FrameInterval())
	if s.Alarm.Cooldown > 0 {
		registry.SetCooldown(s.Alarm.Cooldown)
	}

	return &Processor{
		threats: &threats,
		alarm:   s.Alarm,
		eval:    evaluate.New(&threats),
		tracker: tracker.New(tracker.Config{
			MatchDistance: s.Tracker.MatchDistance,
			StaleFrames:   s.Tracker.StaleFrames,
			HistorySize:   threats.HistorySize,
		}, opts.Logger),
		registry:   registry,
		dispatcher: opts.Dispatcher,
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		log:        opts.Logger,
	}
}

// Dispatcher returns the dispatcher alerts go through.
func (p *Processor) Dispatcher() *dispatch.Dispatcher { return p.dispatcher }

// FrameCount is the number of frames processed.
func (p *Processor) FrameCount() uint64 { return p.frame }

// Reset drops tracks, machines, eye state and cooldowns. Entity ids keep
// increasing so they are never reused within a stream.
func (p *Processor) Reset() {
	p.tracker.Reset()
	p.registry.Reset()
	p.dispatcher.Reset()
	p.eyesClosed = false
}

// Process runs one frame through the pipeline and reports the outcome.
// ctx scopes the delivery of alerts raised by this frame.
func (p *Processor) Process(ctx context.Context, f *detection.Frame) Report {
	start := time.Now()
	p.frame++
	now := f.Timestamp
	if now.IsZero() {
		now = p.clock.Now()
	}
	r := Report{Sequence: f.Sequence, Frame: p.frame, Timestamp: now}

	p.processScene(ctx, f, now, &r)
	p.processEntities(ctx, f, now, &r)

	r.Audio = audioFor(r.Alerts, p.alarm.Enabled)
	r.Counts = p.dispatcher.Counts()
	p.metrics.ObserveFrame(time.Since(start), p.tracker.Len())
	return r
}

func (p *Processor) processScene(ctx context.Context, f *detection.Frame, now time.Time, r *Report) {
	fire := p.eval.Fire(f.FireRegions)
	fireDetail := ""
	if fire.Active {
		fireDetail = fmt.Sprintf("%d region(s), largest %.0f px", fire.Regions, fire.MaxArea)
	}
	p.scene(ctx, threat.Fire, fire.Active, fireDetail, now, r, func(threat.State) string {
		return fmt.Sprintf("FIRE DETECTED (%d regions)", fire.Regions)
	})

	eyes := p.eval.EyeClosure(f.Faces, p.eyesClosed, f.Width, f.Height)
	p.eyesClosed = eyes.Closed
	eyesDetail := ""
	if eyes.Faces > 0 {
		eyesDetail = fmt.Sprintf("ear %.3f, pitch %.1f", eyes.MinEAR, eyes.Pitch)
	}
	if eyes.Skipped > 0 {
		p.metrics.RecordPerceptionError()
		p.log.Debug("face mesh skipped", logger.Int("faces", eyes.Skipped), logger.Uint64("frame", p.frame))
	}
	p.scene(ctx, threat.EyesClosed, eyes.Closed, eyesDetail, now, r, func(s threat.State) string {
		if s == threat.StateConfirmed {
			return fmt.Sprintf("EYES CLOSED FOR %s", p.threats.Eyes.Duration)
		}
		m, _ := p.registry.Lookup(threat.GlobalScope(), threat.EyesClosed)
		return fmt.Sprintf("EYES CLOSED (%.1fs)", m.Elapsed(now).Seconds())
	})

	weapons := p.eval.Weapons(f.Objects)
	p.scene(ctx, threat.Weapon, weapons.Active, weapons.Describe(), now, r, func(threat.State) string {
		return "WEAPON DETECTED: " + weapons.Describe()
	})
}

// scene advances the global machine of t and dispatches when it confirms.
// eyes_closed keeps dispatching every frame while its incident is sustained.
func (p *Processor) scene(ctx context.Context, t threat.Type, active bool, detail string, now time.Time, r *Report, message func(threat.State) string) {
	m := p.registry.Get(threat.GlobalScope(), t)
	shouldAlert := m.Update(active, now)
	if active {
		p.metrics.RecordActive(string(t))
	}
	if shouldAlert {
		p.metrics.RecordConfirmation(string(t))
	}
	if shouldAlert || (t == threat.EyesClosed && m.Sustained()) {
		p.dispatch(ctx, dispatch.Request{Threat: t, Message: message(m.State()), Time: now}, r)
	}
	r.Scene = append(r.Scene, SceneReport{
		Threat:  t,
		Active:  active,
		Elapsed: m.Elapsed(now).Seconds(),
		State:   m.State(),
		Detail:  detail,
	})
}

func (p *Processor) processEntities(ctx context.Context, f *detection.Frame, now time.Time, r *Report) {
	// Malformed poses never reach the tracker.
	poses := make([]detection.PoseDetection, 0, len(f.Poses))
	for i := range f.Poses {
		pose := &f.Poses[i]
		if err := pose.Validate(); err != nil {
			r.Invalid++
			p.metrics.RecordPerceptionError()
			p.log.Debug("pose not evaluated", logger.Int("pose", i), logger.Error(err))
			continue
		}
		if pose.Confidence < p.threats.Confidence {
			r.Skipped++
			continue
		}
		poses = append(poses, *pose)
	}

	a := p.tracker.Update(p.frame, poses)
	for _, id := range a.Evicted {
		n := p.registry.ForgetEntity(id)
		p.log.Debug("entity evicted", logger.Int("entity", id), logger.Int("machines", n))
	}
	p.metrics.RecordTracking(len(a.Evicted), len(a.Ambiguous))

	height := f.Height
	if height <= 0 {
		height = evaluate.DefaultFrameHeight
	}
	r.Entities = make([]EntityReport, 0, len(poses))
	for i := range poses {
		r.Entities = append(r.Entities, p.processEntity(ctx, a.IDs[i], &poses[i], height, now, r))
	}
}

func (p *Processor) processEntity(ctx context.Context, id int, pose *detection.PoseDetection, height int, now time.Time, r *Report) EntityReport {
	er := EntityReport{ID: id, BBox: pose.BBox}
	track, ok := p.tracker.Track(id)
	if !ok {
		return er
	}

	res, err := p.eval.Entity(&track, pose, height)
	if err != nil {
		p.metrics.RecordPerceptionError()
		p.log.Debug("pose not evaluated", logger.Int("entity", id), logger.Error(err))
		er.Error = err.Error()
		return er
	}
	p.tracker.SetTimers(id, res.Timers)
	er.Movement, er.BodyAngle, er.HeadAngle = res.Movement, res.BodyAngle, res.HeadAngle

	results := map[threat.Type]evaluate.Result{
		threat.Sleeping:    res.Sleeping,
		threat.Falling:     res.Falling,
		threat.Unconscious: res.Unconscious,
		threat.Drowning:    res.Drowning,
	}
	er.Conditions = make(map[threat.Type]Condition, len(results))
	var active []threat.Type
	for _, t := range threat.EntityTypes {
		cond := results[t]
		m := p.registry.Get(threat.EntityScope(id), t)
		if m.Update(cond.Active, now) {
			p.metrics.RecordConfirmation(string(t))
			entity := id
			p.dispatch(ctx, dispatch.Request{
				Threat:   t,
				EntityID: &entity,
				Message:  entityMessage(t, id, cond.Metric),
				Time:     now,
			}, r)
		}
		if cond.Active {
			active = append(active, t)
			p.metrics.RecordActive(string(t))
		}
		er.Conditions[t] = Condition{Active: cond.Active, Metric: cond.Metric, State: m.State()}
	}
	er.Primary, _ = arbiter.Primary(active)
	return er
}

func (p *Processor) dispatch(ctx context.Context, req dispatch.Request, r *Report) {
	if ev, ok := p.dispatcher.Dispatch(ctx, req); ok {
		r.Alerts = append(r.Alerts, ev)
	}
}

func entityMessage(t threat.Type, id int, metric float64) string {
	switch t {
	case threat.Unconscious:
		return fmt.Sprintf("UNCONSCIOUS PERSON - ID %d (%.1fs)", id, metric)
	case threat.Drowning:
		return fmt.Sprintf("DROWNING DETECTED - ID %d (%.1fs)", id, metric)
	case threat.Falling:
		return fmt.Sprintf("PERSON FALLING - ID %d (speed %.2f)", id, metric)
	case threat.Sleeping:
		return fmt.Sprintf("PERSON SLEEPING - ID %d (%.1fs)", id, metric)
	default:
		return fmt.Sprintf("%s - ID %d", t, id)
	}
}
