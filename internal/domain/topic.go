package domain

import "encoding/json"

// Closed set of ticket topics understood by the main app.
const (
	TopicPendaftaran = "Pendaftaran"
	TopicPemesanan   = "Pemesanan"
	TopicLainnya     = "Lainnya"
)

func knownTopic(s string) bool {
	switch s {
	case TopicPendaftaran, TopicPemesanan, TopicLainnya:
		return true
	}
	return false
}

// ResolveTopic picks the ticket topic for a broadcast: explicit topic field,
// then the title, then a "topic" key inside the broadcast metadata JSON,
// defaulting to Lainnya. Malformed metadata is ignored.
func ResolveTopic(topic, title, dataJSON string) string {
	if knownTopic(topic) {
		return topic
	}
	if knownTopic(title) {
		return title
	}
	if dataJSON != "" {
		var meta struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal([]byte(dataJSON), &meta); err == nil && knownTopic(meta.Topic) {
			return meta.Topic
		}
	}
	return TopicLainnya
}
