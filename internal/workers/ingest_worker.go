// Package workers consumes the transcript callback stream. Conversational
// workers that batch their output XADD fragment and signal entries instead of
// calling the HTTP callback per utterance; a consumer group fans the entries
// over this pool.
package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

// Stream entry kinds.
const (
	kindFragment = "fragment"
	kindSignal   = "signal"
)

type IngestPool struct {
	Redis       *redis.Client
	Sessions    services.SessionService
	Transcripts services.TranscriptService
	NumWorkers  int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *IngestPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Sessions == nil || p.Transcripts == nil {
		return errors.New("IngestPool missing dependency: Redis/Sessions/Transcripts must be set")
	}
	if p.Stream == "" {
		p.Stream = "transcript:stream"
	}
	if p.Group == "" {
		p.Group = "transcript-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 4
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *IngestPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    16,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *IngestPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	kind := getStr("kind")
	if sessionID == "" || kind == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
		"kind":       kind,
	})

	switch kind {
	case kindFragment:
		text := getStr("text")
		speaker := getStr("speaker")
		offsetMS, _ := strconv.ParseInt(getStr("offset_ms"), 10, 64)

		if _, err := p.Transcripts.Report(ctx, sessionID, speaker, text, offsetMS); err != nil {
			// A fragment for a non-active session is stale worker output, not
			// a processing failure worth retrying.
			if utils.IsCode(err, utils.CodeConflict) || utils.IsCode(err, utils.CodeNotFound) {
				log.WithError(err).Debug("dropped stale fragment")
				return
			}
			log.WithError(err).Warn("fragment ingest failed")
		}

	case kindSignal:
		signal := getStr("signal")
		if err := p.Sessions.HandleSignal(ctx, sessionID, signal); err != nil {
			// Whoever won the per-session lock decided the state; a losing
			// signal is expected during cancellation races.
			if utils.IsCode(err, utils.CodeInvalidTransition) {
				log.WithError(err).WithField("signal", signal).Debug("signal lost transition race")
				return
			}
			log.WithError(err).WithField("signal", signal).Warn("signal handling failed")
		}

	default:
		log.Warn("unknown stream entry kind")
	}
}
