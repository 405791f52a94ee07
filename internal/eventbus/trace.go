package eventbus

import "nefi-engine/internal/logger"

// AllKinds lists every event kind in the order a run can produce them.
var AllKinds = []Kind{KindCacheInput, KindProgress, KindCacheAdd, KindCacheRemove, KindFinished}

// Trace subscribes a listener that logs every event at debug level.
func Trace(b *Bus, log logger.Logger) []Subscription {
	subs := make([]Subscription, 0, len(AllKinds))
	for _, kind := range AllKinds {
		subs = append(subs, b.SubscribeFunc(kind, func(event Event) {
			log.Debug("EventTrace", "event", traceFields(event))
		}))
	}
	return subs
}

func traceFields(event Event) map[string]interface{} {
	fields := map[string]interface{}{"kind": string(event.Kind())}

	switch e := event.(type) {
	case ProgressEvent:
		fields["run_id"] = e.RunID
		fields["value"] = e.Value
		fields["report"] = e.Report
	case CacheAddEvent:
		fields["step"] = e.Cat.String()
		fields["path"] = e.Path
	case CacheRemoveEvent:
		fields["step"] = e.Cat.String()
	case CacheInputEvent:
		fields["path"] = e.Path
	case FinishedEvent:
		fields["run_id"] = e.RunID
		if e.Err != nil {
			fields["error"] = e.Err.Error()
		}
	}
	return fields
}
