package db

import (
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoPassword is the password of every seeded demo account.
const DemoPassword = "password"

type companionSeed struct {
	name        string
	age         int
	personality string
	bio         string
	interests   []string
	traits      []string
	style       string
	score       float64
}

var companionSeeds = []companionSeed{
	{"Aria", 24, "Curious and warm", "Stargazer who collects vintage maps.", []string{"astronomy", "travel", "maps", "tea"}, []string{"curious", "empathetic"}, "thoughtful", 96},
	{"Milo", 27, "Playful optimist", "Weekend baker, weekday debugger.", []string{"baking", "coding", "board games"}, []string{"playful", "loyal"}, "casual", 91},
	{"Sage", 29, "Calm and reflective", "Writes haiku on the train.", []string{"poetry", "hiking", "meditation", "jazz"}, []string{"calm", "wise"}, "poetic", 88},
	{"Nova", 22, "Adventurous spirit", "Has been to every continent but one.", []string{"climbing", "photography", "languages"}, []string{"bold", "spontaneous"}, "energetic", 84},
	{"Theo", 31, "Dry wit", "Film buff with strong opinions on sequels.", []string{"cinema", "history", "cooking"}, []string{"witty", "honest"}, "sarcastic", 79},
	{"Luna", 26, "Dreamy artist", "Paints the view from every apartment she lives in.", []string{"painting", "music", "gardening"}, []string{"creative", "gentle"}, "expressive", 73},
	{"Kai", 25, "Energetic coach", "Runs at sunrise, reads at sunset.", []string{"running", "nutrition", "podcasts"}, []string{"motivated", "supportive"}, "encouraging", 67},
	{"Iris", 33, "Bookish introvert", "Librarian by day, mystery writer by night.", []string{"books", "puzzles", "cats"}, []string{"observant", "kind"}, "quiet", 58},
	{"Jude", 28, "Laid-back musician", "Plays bass in three bands, none of them famous.", []string{"music", "vinyl", "surfing"}, []string{"relaxed", "funny"}, "casual", 46},
	{"Rowan", 30, "Pragmatic planner", "Spreadsheets for fun, seriously.", []string{"finance", "chess", "cycling"}, []string{"organized", "direct"}, "direct", 38},
	{"Ezra", 35, "Old soul", "Fixes clocks and tells long stories.", []string{"antiques", "woodwork", "radio"}, []string{"patient", "nostalgic"}, "storyteller", 31},
	{"Wren", 21, "Chaotic good", "Knows every meme and every bird call.", []string{"birding", "memes", "skateboarding"}, []string{"quirky", "loyal"}, "playful", 22},
}

// SeedTestData resets the database and populates it with companions and demo accounts.
//
// Behavior:
//  1. Clears every table (children first).
//  2. Creates the companion fixtures with descending compatibility scores.
//  3. Creates demo accounts demo1..demo3@example.com with bcrypt-hashed passwords.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedTestData(db *gorm.DB) error {
	if err := clearAll(db); err != nil {
		return err
	}
	log.Println("Cleared existing data")

	if err := SeedCompanions(db); err != nil {
		return err
	}
	log.Printf("Seeded %d companions.", len(companionSeeds))

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	for i := 1; i <= 3; i++ {
		account := Account{
			Email:        fmt.Sprintf("demo%d@example.com", i),
			PasswordHash: string(hash),
			FullName:     fmt.Sprintf("Demo User %d", i),
			Active:       true,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"password_hash", "full_name"}),
		}).Create(&account).Error; err != nil {
			return fmt.Errorf("failed to seed account: %w", err)
		}
	}
	log.Println("Seeded 3 demo accounts.")

	return nil
}

// SeedCompanions inserts the companion fixtures, keyed by name so reruns
// keep stable ids.
func SeedCompanions(db *gorm.DB) error {
	for _, s := range companionSeeds {
		score := s.score
		c := Companion{
			ID:                 companionID(s.name),
			Name:               s.name,
			Age:                s.age,
			Bio:                s.bio,
			Personality:        s.personality,
			Interests:          s.interests,
			PersonalityTraits:  s.traits,
			CommunicationStyle: s.style,
			ImageURL:           "/companions/" + strings.ToLower(s.name) + ".jpg",
			CompatibilityScore: &score,
			IsActive:           true,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "age", "bio", "personality", "compatibility_score", "is_active"}),
		}).Create(&c).Error; err != nil {
			return fmt.Errorf("failed to seed companion %s: %w", s.name, err)
		}
	}
	return nil
}

// companionID derives a deterministic id for a fixture.
func companionID(name string) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012x", fixtureHash(name))
}

func fixtureHash(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h & 0xffffffffffff
}

// SeedMinimalTestData wipes the DB and inserts a small deterministic dataset:
// three active companions (scores 90, 60, 20), one inactive companion and
// one unscored companion.
func SeedMinimalTestData(db *gorm.DB) error {
	if err := clearAll(db); err != nil {
		return err
	}

	high, mid, low := 90.0, 60.0, 20.0
	companions := []Companion{
		{ID: "c-high", Name: "Aria", Age: 24, Personality: "Curious", Bio: "Stargazer", Interests: StringList{"astronomy"}, CompatibilityScore: &high, IsActive: true},
		{ID: "c-mid", Name: "Milo", Age: 30, Personality: "Playful", Bio: "Baker", Interests: StringList{"baking"}, CompatibilityScore: &mid, IsActive: true},
		{ID: "c-low", Name: "Wren", Age: 40, Personality: "Quirky", Bio: "Birder", Interests: StringList{"birds"}, CompatibilityScore: &low, IsActive: true},
		{ID: "c-unscored", Name: "Ezra", Age: 35, Personality: "Old soul", Bio: "Clocks", IsActive: true},
		{ID: "c-inactive", Name: "Ghost", Age: 25, Personality: "Absent", Bio: "Gone", CompatibilityScore: &high, IsActive: false},
	}
	return db.Create(&companions).Error
}

func clearAll(db *gorm.DB) error {
	models := AllModels()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", models[i], err)
		}
	}
	return nil
}
