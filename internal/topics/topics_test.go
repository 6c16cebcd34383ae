package topics

import "testing"

func TestTopicBuilders(t *testing.T) {
	cases := map[string]string{
		Telemetry("RV-001"):    "aetheris/telemetry/RV-001",
		Heartbeat("DR-001"):    "aetheris/heartbeat/DR-001",
		Environment("PIPE-A3"): "aetheris/environment/PIPE-A3",
		Commands("CR-002"):     "aetheris/commands/CR-002",
		Responses("CR-002"):    "aetheris/responses/CR-002",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		topic string
		want  Class
	}{
		{"aetheris/telemetry/RV-001", ClassTelemetry},
		{"aetheris/heartbeat/RV-001", ClassHeartbeat},
		{"aetheris/alerts", ClassAlert},
		{"aetheris/alerts/extra", ClassUnknown},
		{"aetheris/environment/PIPE-1", ClassEnvironment},
		{"aetheris/responses/RV-001", ClassResponse},
		{"aetheris/commands/RV-001", ClassCommand},
		{CommandsBroadcast, ClassCommand},
		{SystemStatus, ClassUnknown},
		{"other/telemetry/RV-001", ClassUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.topic); got != c.want {
			t.Fatalf("Classify(%q) = %s, want %s", c.topic, got, c.want)
		}
	}
}

func TestSubscriptionsCoverInboundClasses(t *testing.T) {
	subs := Subscriptions()
	if len(subs) != 6 {
		t.Fatalf("expected 6 subscriptions, got %d", len(subs))
	}
	if TargetID(Telemetry("RV-001")) != "RV-001" {
		t.Fatalf("unexpected target id")
	}
}
