// Command main runs the database seeder for snapfeed.
package main

import (
	"context"
	"flag"
	"log"

	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/seed"
)

func main() {
	// Parse command line flags
	opts := seed.DefaultOptions
	flag.IntVar(&opts.NumUsers, "users", opts.NumUsers, "Number of users to create")
	flag.IntVar(&opts.NumPosts, "posts", opts.NumPosts, "Number of posts to create")
	flag.IntVar(&opts.MaxCommentsPerPost, "comments", opts.MaxCommentsPerPost, "Maximum comments per post")
	flag.Float64Var(&opts.LikeRatio, "like-ratio", opts.LikeRatio, "Chance that a user likes a given post")
	flag.BoolVar(&opts.ShouldClean, "clean", opts.ShouldClean, "Clean database before seeding")
	flag.Int64Var(&opts.RandomSeed, "seed", 0, "Random seed (0 picks one)")
	flag.BoolVar(&opts.FastHash, "fast-hash", false, "Use the minimum bcrypt cost for seeded passwords")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, clean=%v\n", opts.NumUsers, opts.NumPosts, opts.ShouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.Seed(context.Background(), db, opts)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d posts, %d comments, %d likes.", res.Users, res.Posts, res.Comments, res.Likes)
	log.Printf("📧 All test users have the password: %s", seed.DemoPassword)
}
