package broker

import "testing"

func TestRoutingKeys_CoverAllThreeEntityTypes(t *testing.T) {
	want := map[string]string{
		"REASONING":           QueueAgentTasks,
		"LIGHT_DETERMINISTIC": QueueProcessTasks,
		"HEAVY_DETERMINISTIC": QueueSimulation,
	}
	if len(routingKeys) != len(want) {
		t.Fatalf("expected %d routing keys, got %d", len(want), len(routingKeys))
	}
	for k, v := range want {
		if routingKeys[k] != v {
			t.Errorf("routing key %q: want queue %q, got %q", k, v, routingKeys[k])
		}
	}
}
