package integration

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"sift/internal/entity"
	"sift/internal/logger"
	"sift/internal/message"
)

const containerStartupTimeout = 60

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestEntity(entityType entity.EntityType, identifiers entity.DonationIdentifiers) *entity.Entity {
	return &entity.Entity{
		Name:                gofakeit.Company(),
		Type:                entityType,
		Party:               gofakeit.RandomString([]string{"R", "D", "I"}),
		State:               gofakeit.StateAbr(),
		DonationIdentifiers: identifiers,
	}
}

func createTestMessage(t *testing.T, sender string, links []message.CtaLink) *message.Message {
	t.Helper()

	raw, err := message.MarshalCtaLinks(links)
	if err != nil {
		t.Fatalf("failed to marshal links: %v", err)
	}

	return &message.Message{
		Channel:  message.ChannelEmail,
		Sender:   sender,
		CtaLinks: raw,
	}
}
