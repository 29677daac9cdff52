package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
	slogecho "github.com/samber/slog-echo"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/replydash/replydash/internal/keys"
	"github.com/replydash/replydash/twitter"
)

func main() {
	godotenv.Load()

	app := &cli.App{
		Name:    "replydash-server",
		Usage:   "reply manager dashboard server",
		Version: versioninfo.Short(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				EnvVars: []string{"ADDR"},
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "replydash.db",
				EnvVars: []string{"DATABASE_PATH"},
			},
			&cli.StringFlag{
				Name:     "twitter-client-id",
				Required: true,
				EnvVars:  []string{"TWITTER_CLIENT_ID"},
			},
			&cli.StringFlag{
				Name:     "twitter-client-secret",
				Required: true,
				EnvVars:  []string{"TWITTER_CLIENT_SECRET"},
			},
			&cli.StringFlag{
				Name:     "redirect-uri",
				Required: true,
				EnvVars:  []string{"REDIRECT_URI"},
			},
			&cli.StringFlag{
				Name:     "cookie-secret",
				Required: true,
				EnvVars:  []string{"COOKIE_SECRET"},
			},
			&cli.StringFlag{
				Name:     "auth-state-jwk",
				Usage:    "private ES256 jwk used to sign auth request tokens, see cmd/helper",
				Required: true,
				EnvVars:  []string{"AUTH_STATE_JWK"},
			},
		},
		Action: run,
	}

	app.RunAndExitOnError()
}

type Server struct {
	db         *gorm.DB
	twitter    *twitter.Client
	signingKey jwk.Key
	e          *echo.Echo
}

type ServerArgs struct {
	Db           *gorm.DB
	Twitter      *twitter.Client
	SigningKey   jwk.Key
	CookieSecret string
}

func NewServer(args ServerArgs) (*Server, error) {
	if args.Db == nil {
		return nil, fmt.Errorf("no database provided")
	}

	if args.Twitter == nil {
		return nil, fmt.Errorf("no twitter client provided")
	}

	if args.SigningKey == nil {
		return nil, fmt.Errorf("no signing key provided")
	}

	if args.CookieSecret == "" {
		return nil, fmt.Errorf("no cookie secret provided")
	}

	s := &Server{
		db:         args.Db,
		twitter:    args.Twitter,
		signingKey: args.SigningKey,
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(slogecho.New(slog.Default()))
	e.Use(session.Middleware(sessions.NewCookieStore([]byte(args.CookieSecret))))

	e.GET("/", s.handleIndex)
	e.GET("/auth/twitter", s.handleLogin)
	e.GET("/auth/twitter/callback", s.handleCallback)
	e.GET("/auth/error", s.handleAuthError)
	e.GET("/logout", s.handleLogout)

	e.GET("/api/profile", s.handleProfile)
	e.GET("/api/replies", s.handleListReplies)
	e.POST("/api/replies/:id/approve", s.handleApproveReply)
	e.POST("/api/replies/:id/skip", s.handleSkipReply)
	e.PUT("/api/replies/:id", s.handleEditReply)
	e.GET("/api/settings/digest", s.handleGetDigestSettings)
	e.PUT("/api/settings/digest", s.handleUpdateDigestSettings)
	e.GET("/api/targets", s.handleListTargets)
	e.POST("/api/targets", s.handleAddTarget)
	e.DELETE("/api/targets/:id", s.handleRemoveTarget)

	s.e = e

	return s, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&TwitterCredential{},
		&Session{},
		&TrackedAccount{},
		&DigestSetting{},
		&SuggestedReply{},
	)
}

func run(cmd *cli.Context) error {
	signingKey, err := keys.ParseKeyFromBytes([]byte(cmd.String("auth-state-jwk")))
	if err != nil {
		return fmt.Errorf("could not parse auth state jwk: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(cmd.String("db-path")), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	if err := autoMigrate(db); err != nil {
		return fmt.Errorf("could not migrate database: %w", err)
	}

	twitterClient, err := twitter.NewClient(twitter.ClientArgs{
		ClientId:     cmd.String("twitter-client-id"),
		ClientSecret: cmd.String("twitter-client-secret"),
		RedirectUri:  cmd.String("redirect-uri"),
	})
	if err != nil {
		return fmt.Errorf("could not create twitter client: %w", err)
	}

	s, err := NewServer(ServerArgs{
		Db:           db,
		Twitter:      twitterClient,
		SigningKey:   signingKey,
		CookieSecret: cmd.String("cookie-secret"),
	})
	if err != nil {
		return err
	}

	httpd := http.Server{
		Addr:    cmd.String("addr"),
		Handler: s.e,
	}

	slog.Info("starting http server", "addr", cmd.String("addr"))

	if err := httpd.ListenAndServe(); err != nil {
		return err
	}

	return nil
}
