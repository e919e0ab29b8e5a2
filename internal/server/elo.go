package server

import "math"

// eloK is the K-factor applied to both sides of every rated game.
const eloK = 32

// expectedScore returns the classical Elo expectation of `rating` against
// `opponent`: 1 / (1 + 10^((opponent-rating)/400)).
func expectedScore(rating, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-rating)/400))
}

// updatedRatings returns the post-game ratings of the winner and loser.
// Each side moves by K times the gap between actual and expected score,
// rounded to the nearest integer.
func updatedRatings(winner, loser int) (int, int) {
	newWinner := int(math.Round(float64(winner) + eloK*(1-expectedScore(winner, loser))))
	newLoser := int(math.Round(float64(loser) + eloK*(0-expectedScore(loser, winner))))
	return newWinner, newLoser
}
