// Package jaidee provides the conversation core for Jai Dee, a Thai-language
// LINE chatbot that supports people recovering from substance abuse.
//
// The package is opinionated (Anthropic + Redis + PostgreSQL) and handles the
// stateful part of the product: per-user rolling sessions with TTLs, hybrid
// context compaction when conversations outgrow the token budget, durable
// history with restoration after session expiry, risk-aware fallbacks, and
// per-user turn serialization.
//
// # Quick Start
//
// Create a bot with required configuration:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	client := anthropic.NewClient()
//	bot, err := jaidee.New(
//	    redisv9.New(rdb),
//	    jaidee.Config{
//	        Oracle:       llm.NewAnthropicOracle(&client),
//	        Model:        "claude-3-5-sonnet-20241022",
//	        SystemPrompt: systemPrompt,
//	    },
//	    jaidee.WithMaxRetries(2),
//	)
//
// Process a turn (the transport layer delivers the reply):
//
//	reply, err := bot.HandleTurn(ctx, lineUserID, userText)
//
// HandleTurn is safe to call concurrently; turns for the same user are
// serialized through a TTL'd lock, and a second message arriving mid-turn
// gets at most one rate-limited "please wait" notice per window.
//
// # Context Compaction
//
// Sessions are compacted when their estimated token count crosses the
// configured threshold. Compaction keeps the most recent pairs verbatim,
// keeps clinically important older pairs verbatim, and replaces the rest
// with a model-written summary carried in a synthetic message role that is
// merged into the system prompt before dispatch. See the compaction package.
//
// # Durable History
//
// When a history store is wired with WithArchive, every turn is appended to
// Postgres and an expired Redis session is rebuilt from it on the user's
// next message, so a returning user is never greeted by a blank slate.
package jaidee
