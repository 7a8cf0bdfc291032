package bus

import "testing"

func TestEventTopics_Constants(t *testing.T) {
	topics := map[string]bool{
		TopicThrottleFreeze:      true,
		TopicThrottleQueueFull:   true,
		TopicThrottleLimitsSet:   true,
		TopicPollerBackoff:       true,
		TopicPollerStopped:       true,
		TopicDispatchChatStarted: true,
		TopicDispatchChatStopped: true,
	}
	for name, ok := range topics {
		if !ok || name == "" {
			t.Fatalf("topic constant is empty")
		}
	}
	if len(topics) != 7 {
		t.Fatalf("expected 7 unique topics, got %d", len(topics))
	}
}

func TestThrottleFreezeEvent_Fields(t *testing.T) {
	e := ThrottleFreezeEvent{ChatID: "123", DurationSecs: 30}

	if e.ChatID == "" {
		t.Fatal("ChatID must not be empty")
	}
	if e.DurationSecs <= 0 {
		t.Fatalf("DurationSecs = %d, want > 0", e.DurationSecs)
	}
	if e.SlowModeDelay != 0 {
		t.Fatalf("SlowModeDelay = %d, want 0 when not slow-mode attributed", e.SlowModeDelay)
	}
}

func TestThrottleQueueFullEvent_Fields(t *testing.T) {
	e := ThrottleQueueFullEvent{Depth: 1000}
	if e.Depth != 1000 {
		t.Fatalf("Depth = %d, want 1000", e.Depth)
	}
}

func TestPollerBackoffEvent_Fields(t *testing.T) {
	e := PollerBackoffEvent{ConsecutiveErrors: 3, DelayMillis: 4000, Error: "network timeout"}
	if e.ConsecutiveErrors != 3 {
		t.Fatalf("ConsecutiveErrors = %d, want 3", e.ConsecutiveErrors)
	}
	if e.DelayMillis <= 0 {
		t.Fatalf("DelayMillis = %d, want > 0", e.DelayMillis)
	}
	if e.Error == "" {
		t.Fatal("Error must not be empty")
	}
}

func TestDispatchChatEvent_Fields(t *testing.T) {
	e := DispatchChatEvent{ChatID: "456"}
	if e.ChatID == "" {
		t.Fatal("ChatID must not be empty")
	}
}

func TestBus_PublishThrottleFreeze(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicThrottleFreeze)
	defer b.Unsubscribe(sub)

	b.Publish(TopicThrottleFreeze, ThrottleFreezeEvent{ChatID: "789", DurationSecs: 15})

	event := <-sub.Ch()
	freeze, ok := event.Payload.(ThrottleFreezeEvent)
	if !ok {
		t.Fatalf("payload type = %T, want ThrottleFreezeEvent", event.Payload)
	}
	if freeze.ChatID != "789" {
		t.Fatalf("ChatID = %q, want 789", freeze.ChatID)
	}
}
