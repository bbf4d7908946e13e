package enums

// TriggerEventType names the messages carried on the matching trigger topic.
type TriggerEventType string

const (
	TriggerMatchRequested    TriggerEventType = "request.match_requested"
	TriggerCriteriaChanged   TriggerEventType = "request.criteria_changed"
	TriggerMatchAllRequested TriggerEventType = "request.match_all_requested"
)

var triggerEventTypes = newSet("trigger event type",
	TriggerMatchRequested,
	TriggerCriteriaChanged,
	TriggerMatchAllRequested,
)

func (t TriggerEventType) String() string { return string(t) }

func (t TriggerEventType) IsValid() bool { return triggerEventTypes.has(t) }

// ParseTriggerEventType reads the event_type attribute of a trigger message.
func ParseTriggerEventType(value string) (TriggerEventType, error) {
	return triggerEventTypes.parse(value)
}
