// Package notification listens for monday item-updated events on Pub/Sub
// and triggers background re-syncs, so snapshots follow item edits without
// anyone pressing the sync button.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	taskUsecase "design-assistant-backend/internal/task/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// ItemUpdatedEvent is published by the monday webhook bridge.
type ItemUpdatedEvent struct {
	ExternalTaskKey string `json:"externalTaskKey"`
}

type Service struct {
	pubsubClient *pubsub.Client
	tasks        *taskUsecase.TaskUsecase
	topicName    string
	subName      string
}

func NewService(projectID, topicName, credentialsFile string, tasks *taskUsecase.TaskUsecase) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient: client,
		tasks:        tasks,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting resync listener on topic %s, subscription %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, resync listener disabled", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(msg *pubsub.Message) {
	var event ItemUpdatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("[PubSub] Failed to unmarshal event: %v", err)
		return
	}
	if event.ExternalTaskKey == "" {
		log.Printf("[PubSub] Dropping event without externalTaskKey")
		return
	}

	ack, err := s.tasks.RequestSync(event.ExternalTaskKey, false)
	switch {
	case err != nil:
		// Unknown tasks are expected: events fire for items nobody has
		// handed off yet.
		log.Printf("[PubSub] Resync skipped for %s: %v", event.ExternalTaskKey, err)
	case ack == taskUsecase.SyncAckAlreadySyncing:
		log.Printf("[PubSub] Resync skipped for %s: already syncing", event.ExternalTaskKey)
	default:
		log.Printf("[PubSub] Resync queued for %s", event.ExternalTaskKey)
	}
}
