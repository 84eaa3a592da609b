// Package providers implements clients for the external metadata APIs the
// catalog syncs against: TMDB (movies and TV shows), Open Library (books) and
// IGDB (games).
//
// Every concrete client issues its HTTP calls through a shared [Client] base,
// which consumes a rate limiter, enforces an absolute per-call timeout and
// maps transport and HTTP failures onto the error taxonomy in
// internal/shared. Concrete clients only add URL construction and response
// parsing; they never retry. Retry, if any, is the calling task handler's
// decision.
package providers
