// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"snapfeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password every seeded user can log in with.
const DemoPassword = "password123"

// Factory builds domain entities from fake data.
type Factory struct {
	faker  *gofakeit.Faker
	hashed string
}

// NewFactory creates a Factory. A zero RandomSeed picks a random one.
func NewFactory(opts Options) (*Factory, error) {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	return &Factory{faker: gofakeit.New(seed), hashed: string(hashed)}, nil
}

// BuildUser returns an unsaved verified user with a unique-ish username.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, f.faker.Number(100, 999)))
	if len(username) > 30 {
		username = username[:30]
	}
	username = strings.Trim(username, "_-")
	verified := time.Now().UTC()

	user := &models.User{
		Name:            first + " " + last,
		Username:        &username,
		Email:           username + "@" + f.faker.DomainName(),
		Password:        f.hashed,
		EmailVerifiedAt: &verified,
		Bio:             f.faker.Sentence(10),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// Caption returns a caption, or nil about a fifth of the time.
func (f *Factory) Caption() *string {
	if f.faker.Number(1, 5) == 1 {
		return nil
	}
	caption := f.faker.Sentence(f.faker.Number(4, 18))
	return &caption
}

// Image returns a small random PNG as a data URI.
func (f *Factory) Image() string {
	raw := f.faker.ImagePng(f.faker.Number(8, 32), f.faker.Number(8, 32))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}

// CommentText returns a comment body within the length limit.
func (f *Factory) CommentText() string {
	text := f.faker.Sentence(f.faker.Number(3, 14))
	if len(text) > models.MaxCommentLength {
		text = text[:models.MaxCommentLength]
	}
	return text
}

// Chance reports true with the given probability.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

// Pick returns a random index in [0, n).
func (f *Factory) Pick(n int) int {
	return f.faker.Number(0, n-1)
}
