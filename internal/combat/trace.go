package combat

import "driftpursuit/intercept/internal/logging"

// LoggingFields returns structured logging fields describing the shot.
func (e FireEvent) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.Int("time", e.Time),
		logging.String("shooter", e.Shooter.String()),
		logging.Bool("hit", e.Hit),
		logging.Bool("critical", e.Critical),
		logging.Int("damage", e.Damage),
		logging.Int("target_health", e.TargetHealth),
	}
}

// LoggingFields returns structured logging fields describing the outcome.
func (o Outcome) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.Float64("side_a", o.SideA),
		logging.Float64("side_b", o.SideB),
		logging.Int("events", o.Events),
		logging.Int("elapsed", o.Elapsed),
		logging.String("reason", string(o.Reason)),
	}
}

// TraceObserver logs every fire event at debug level.
func TraceObserver(logger *logging.Logger) Observer {
	if logger == nil {
		logger = logging.L()
	}
	return ObserverFunc(func(event FireEvent) {
		if !logger.Enabled(logging.DebugLevel) {
			return
		}
		if event.Hit {
			logger.Debug("shot hit", event.LoggingFields()...)
			return
		}
		logger.Debug("shot missed", event.LoggingFields()...)
	})
}

// MultiObserver fans fire events out to several observers in order.
func MultiObserver(observers ...Observer) Observer {
	filtered := make([]Observer, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			filtered = append(filtered, observer)
		}
	}
	return ObserverFunc(func(event FireEvent) {
		for _, observer := range filtered {
			observer.ObserveFire(event)
		}
	})
}
