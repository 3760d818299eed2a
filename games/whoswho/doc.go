// Package whoswho implements the round logic of a music guessing game.
//
// A setup step picks a genre and a pool size, pulls candidate artists and their
// preview clips from a music catalog, and designates one artist of the pool as
// the winner. The player listens to the winner's previews and tries to pick the
// winner out of the pool within a limited number of guesses.
//
// Rules:
// - Pools of fewer than 4 artists allow one guess, larger pools allow two
// - Every submitted guess costs one guess, including the winning one
// - A correct guess wins the round; running out of guesses loses it
// - Only one preview plays at a time, and it stops whenever a guess is submitted
// - A round survives a reload through the persisted round payload and guess counter
// - Restarting throws the round away and goes back to setup
package whoswho
