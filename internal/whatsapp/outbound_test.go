package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/sehatline/sehatline/internal/nats"
)

type fakeSender struct {
	uploadErr error
	audioErr  error
	textErr   error

	sentText  []string
	sentAudio []string
	uploaded  [][]byte
}

func (s *fakeSender) SendText(_ context.Context, to, body string) error {
	if s.textErr != nil {
		return s.textErr
	}
	s.sentText = append(s.sentText, body)
	return nil
}

func (s *fakeSender) SendAudio(_ context.Context, to, mediaID string) error {
	if s.audioErr != nil {
		return s.audioErr
	}
	s.sentAudio = append(s.sentAudio, mediaID)
	return nil
}

func (s *fakeSender) UploadMedia(_ context.Context, data []byte, _ string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploaded = append(s.uploaded, data)
	return "media-1", nil
}

func TestDeliver_TextMessage(t *testing.T) {
	sender := &fakeSender{}
	d := NewDeliverer(sender, nil)

	err := d.Deliver(context.Background(), inats.OutboundMessage{
		ID:     "out-1",
		UserID: "923001234567",
		Kind:   inats.KindText,
		Body:   "aap ka shukriya",
	})
	require.NoError(t, err)

	require.Len(t, sender.sentText, 1)
	assert.Equal(t, "aap ka shukriya", sender.sentText[0])
	assert.Empty(t, sender.sentAudio)
}

func TestDeliver_VoiceMessage(t *testing.T) {
	sender := &fakeSender{}
	d := NewDeliverer(sender, nil)

	err := d.Deliver(context.Background(), inats.OutboundMessage{
		ID:     "out-2",
		UserID: "923001234567",
		Kind:   inats.KindVoice,
		Body:   "fallback text",
		Audio:  []byte("opus"),
	})
	require.NoError(t, err)

	require.Len(t, sender.sentAudio, 1)
	assert.Equal(t, "media-1", sender.sentAudio[0])
	assert.Empty(t, sender.sentText, "text should not be sent when audio succeeds")
}

func TestDeliver_VoiceUploadFailureFallsBackToText(t *testing.T) {
	sender := &fakeSender{uploadErr: errors.New("upload rejected")}
	d := NewDeliverer(sender, nil)

	err := d.Deliver(context.Background(), inats.OutboundMessage{
		ID:     "out-3",
		UserID: "923001234567",
		Kind:   inats.KindVoice,
		Body:   "fallback text",
		Audio:  []byte("opus"),
	})
	require.NoError(t, err)

	require.Len(t, sender.sentText, 1)
	assert.Equal(t, "fallback text", sender.sentText[0])
	assert.Empty(t, sender.sentAudio)
}

func TestDeliver_VoiceSendFailureFallsBackToText(t *testing.T) {
	sender := &fakeSender{audioErr: errors.New("send rejected")}
	d := NewDeliverer(sender, nil)

	err := d.Deliver(context.Background(), inats.OutboundMessage{
		ID:     "out-4",
		UserID: "923001234567",
		Kind:   inats.KindVoice,
		Body:   "fallback text",
		Audio:  []byte("opus"),
	})
	require.NoError(t, err)
	require.Len(t, sender.sentText, 1)
}

func TestDeliver_VoiceWithoutAudioSendsText(t *testing.T) {
	sender := &fakeSender{}
	d := NewDeliverer(sender, nil)

	err := d.Deliver(context.Background(), inats.OutboundMessage{
		ID:     "out-5",
		UserID: "923001234567",
		Kind:   inats.KindVoice,
		Body:   "text only",
	})
	require.NoError(t, err)
	require.Len(t, sender.sentText, 1)
	assert.Empty(t, sender.uploaded)
}

func TestDeliver_TextSendFailure(t *testing.T) {
	sender := &fakeSender{textErr: errors.New("network down")}
	d := NewDeliverer(sender, nil)

	err := d.Deliver(context.Background(), inats.OutboundMessage{
		ID:     "out-6",
		UserID: "923001234567",
		Kind:   inats.KindText,
		Body:   "hello",
	})
	require.Error(t, err)
}
