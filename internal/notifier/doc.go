// Package notifier delivers schedule digests and risk warnings to operators.
//
// Messages are queued and sent by a small worker pool behind a token-bucket
// limiter, retried with jittered exponential backoff and suppressed when an
// identical message was sent within the dedup window. Dedup state can be
// persisted in storage so a restart does not resend the last digest.
//
// Delivery goes through a Sender; TelegramSender posts to a chat (optionally a
// forum topic) via telebot.
package notifier
