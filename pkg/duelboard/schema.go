package duelboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// several deployments can share one Redis server.

// SignaturesKey returns the Redis key for a duel's processed signature set.
// Pattern: duelsync:{instance_name}:duel:{duel_id}:signatures
func SignaturesKey(instanceName, duelID string) string {
	return fmt.Sprintf("duelsync:%s:duel:%s:signatures", instanceName, duelID)
}

// InflightKey returns the Redis key marking a signature as being reconciled.
// Pattern: duelsync:{instance_name}:duel:{duel_id}:inflight:{signature}
func InflightKey(instanceName, duelID, signature string) string {
	return fmt.Sprintf("duelsync:%s:duel:%s:inflight:%s", instanceName, duelID, signature)
}

// AnnouncementsKey returns the Redis key for the outbound announcement queue.
// Pattern: duelsync:{instance_name}:announcements
func AnnouncementsKey(instanceName string) string {
	return fmt.Sprintf("duelsync:%s:announcements", instanceName)
}

// DuelEventsChannel returns the Pub/Sub channel observer notifications are mirrored to.
// Pattern: duelsync:{instance_name}:duel_events
func DuelEventsChannel(instanceName string) string {
	return fmt.Sprintf("duelsync:%s:duel_events", instanceName)
}
