package telegram

import (
	"context"
	"log"

	"github.com/TobiSchelling/itnewsbot/internal/news"
)

// Sink delivers publications to a channel.
type Sink struct {
	client    *Client
	channelID string
}

// NewSink creates a Sink posting to channelID.
func NewSink(client *Client, channelID string) *Sink {
	return &Sink{client: client, channelID: channelID}
}

// Deliver posts p as a photo with caption when it has an image and the
// caption fits, otherwise as a text message.
func (s *Sink) Deliver(ctx context.Context, p news.Publication) error {
	if img := news.Deref(p.ImageURL); img != "" {
		caption := FormatPost(p, 0)
		if runeLen(caption) <= CaptionLimit {
			if err := s.client.SendPhoto(ctx, s.channelID, img, caption); err != nil {
				return err
			}
			log.Printf("Published with photo: %s", p.Title)
			return nil
		}
	}

	if err := s.client.SendMessage(ctx, s.channelID, FormatPost(p, MessageLimit)); err != nil {
		return err
	}
	log.Printf("Published: %s", p.Title)
	return nil
}
