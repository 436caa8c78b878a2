package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTopic(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		title    string
		dataJSON string
		want     string
	}{
		{name: "explicit topic wins", topic: "Pemesanan", title: "Pendaftaran", want: "Pemesanan"},
		{name: "unknown topic falls through to title", topic: "Promo", title: "Pendaftaran", want: "Pendaftaran"},
		{name: "metadata topic", title: "Pengumuman penting", dataJSON: `{"topic":"Pemesanan"}`, want: "Pemesanan"},
		{name: "unknown metadata topic defaults", title: "Pengumuman", dataJSON: `{"topic":"Promo"}`, want: "Lainnya"},
		{name: "malformed metadata ignored", title: "Pengumuman", dataJSON: `{not json`, want: "Lainnya"},
		{name: "everything empty defaults", want: "Lainnya"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveTopic(tc.topic, tc.title, tc.dataJSON))
		})
	}
}

func TestCreateBroadcastRequestValidate(t *testing.T) {
	req := CreateBroadcastRequest{CompetitionID: 9, Subject: "Info", Message: "Halo"}
	assert.NoError(t, req.Validate())

	assert.ErrorIs(t, CreateBroadcastRequest{Subject: "x", Message: "y"}.Validate(), ErrCompetitionRequired)
	assert.ErrorIs(t, CreateBroadcastRequest{CompetitionID: 1, Message: "y"}.Validate(), ErrSubjectRequired)
	assert.ErrorIs(t, CreateBroadcastRequest{CompetitionID: 1, Subject: "x"}.Validate(), ErrMessageRequired)
}
