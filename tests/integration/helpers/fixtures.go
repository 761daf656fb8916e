//go:build integration
// +build integration

package helpers

// Sample devices provisioned by the mock core.
const (
	// PhoneReachableData is registered, connected, with a PDU session.
	PhoneReachableData = "+33600000001"

	// PhoneReachableSMS is registered but idle.
	PhoneReachableSMS = "+33600000002"

	// PhoneRoaming is attached to the French test PLMN.
	PhoneRoaming = "+33600000003"

	// PhoneUnreachable is deregistered.
	PhoneUnreachable = "+33600000004"
)

// QoDSessionRequest builds a session creation payload for the given
// device and sink.
func QoDSessionRequest(phone, sink string, duration int) map[string]interface{} {
	return map[string]interface{}{
		"device": map[string]string{
			"phoneNumber": phone,
		},
		"applicationServer": map[string]string{
			"ipv4Address": "198.51.100.10",
		},
		"qosProfile": "QOS_E",
		"duration":   duration,
		"sink":       sink,
	}
}

// SubscriptionRequest builds a device-status subscription payload.
func SubscriptionRequest(phone, sink string, types []string) map[string]interface{} {
	return map[string]interface{}{
		"device": map[string]string{
			"phoneNumber": phone,
		},
		"sink":  sink,
		"types": types,
	}
}

// TrafficInfluenceRequest builds a traffic influence creation payload.
func TrafficInfluenceRequest(phone string) map[string]interface{} {
	return map[string]interface{}{
		"appId":           "video-streaming",
		"appInstanceId":   "instance-1",
		"edgeCloudZoneId": "zone-west",
		"device": map[string]string{
			"phoneNumber": phone,
		},
	}
}
