package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"artistsync/internal/metrics"
	"artistsync/internal/models"
	"artistsync/internal/session"
)

const neteasePlatform = "netease"

// Playlist add responses with these codes count as success; 502 is
// returned when every track is already in the playlist.
var playlistAddOKCodes = map[int64]bool{200: true, 502: true}

// NeteaseOptions configures the NetEase client
type NeteaseOptions struct {
	BaseURL           string
	Timeout           time.Duration
	UploadTimeout     time.Duration
	UploadRetries     int
	UploadRetryBase   time.Duration
	PlaylistRetries   int
	PlaylistRetryBase time.Duration
}

// NeteaseService talks to a NeteaseCloudMusicApi server. It implements
// PrimaryCatalog and LoginProvider.
type NeteaseService struct {
	client        *resty.Client
	uploadTimeout time.Duration
	uploadRetry   retryPolicy
	playlistRetry retryPolicy
	now           func() time.Time
}

// NewNeteaseService creates a client for the API server at opts.BaseURL
func NewNeteaseService(opts NeteaseOptions, m *metrics.Metrics) *NeteaseService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	return &NeteaseService{
		client:        client,
		uploadTimeout: opts.UploadTimeout,
		uploadRetry:   newRetryPolicy("upload", opts.UploadRetries, LinearBackoff(opts.UploadRetryBase), m),
		playlistRetry: newRetryPolicy("playlist_add", opts.PlaylistRetries, LinearBackoff(opts.PlaylistRetryBase), m),
		now:           time.Now,
	}
}

// neteaseSong is the song shape shared by search and top-song responses
type neteaseSong struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"ar"`
	Album struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		PicURL string `json:"picUrl"`
	} `json:"al"`
	DurationMs int `json:"dt"`
}

func (s neteaseSong) toCatalogTrack() models.CatalogTrack {
	names := make([]string, 0, len(s.Artists))
	for _, a := range s.Artists {
		names = append(names, a.Name)
	}
	return models.CatalogTrack{
		ID:              strconv.FormatInt(s.ID, 10),
		Name:            s.Name,
		Artist:          models.JoinArtists(names),
		Album:           s.Album.Name,
		DurationSeconds: s.DurationMs / 1000,
		CoverURL:        s.Album.PicURL,
	}
}

type neteaseArtist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PicURL    string `json:"picUrl"`
	Cover     string `json:"cover"`
	AlbumSize int    `json:"albumSize"`
	MusicSize int    `json:"musicSize"`
}

func (a neteaseArtist) toArtist() models.Artist {
	pic := a.PicURL
	if pic == "" {
		pic = a.Cover
	}
	return models.Artist{
		ID:        strconv.FormatInt(a.ID, 10),
		Name:      a.Name,
		PicURL:    pic,
		AlbumSize: a.AlbumSize,
		MusicSize: a.MusicSize,
	}
}

// request builds a call carrying the cookie (when valid) and a cache-busting timestamp
func (s *NeteaseService) request(ctx context.Context, cred *session.Credential) *resty.Request {
	req := s.client.R().
		SetContext(ctx).
		SetQueryParam("timestamp", strconv.FormatInt(s.now().UnixMilli(), 10))
	if cookie := cred.CookieOrEmpty(); cookie != "" {
		req.SetQueryParam("cookie", cookie)
	}
	return req
}

func (s *NeteaseService) requireAuth(cred *session.Credential, operation string) error {
	if err := cred.Validate(s.now()); err != nil {
		return &PlatformError{Platform: neteasePlatform, Operation: operation, Message: "login required", Err: err}
	}
	return nil
}

func (s *NeteaseService) get(req *resty.Request, operation, path string, result any) error {
	resp, err := req.SetResult(result).Get(path)
	if err != nil {
		return &PlatformError{Platform: neteasePlatform, Operation: operation, Message: "request failed", Err: err}
	}
	return checkNeteaseResponse(resp, operation)
}

func checkNeteaseResponse(resp *resty.Response, operation string) error {
	// The API server answers 301 when a call needs a login
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusMovedPermanently {
		return &PlatformError{Platform: neteasePlatform, Operation: operation, Message: "session rejected", Err: ErrNotAuthenticated}
	}
	if resp.StatusCode() != http.StatusOK {
		return &PlatformError{
			Platform:  neteasePlatform,
			Operation: operation,
			Message:   fmt.Sprintf("unexpected status code: %d", resp.StatusCode()),
		}
	}
	return nil
}

// SearchArtist searches artists by keyword
func (s *NeteaseService) SearchArtist(ctx context.Context, cred *session.Credential, keyword string, limit int) ([]models.Artist, error) {
	var body struct {
		Result struct {
			Artists []neteaseArtist `json:"artists"`
		} `json:"result"`
	}
	req := s.request(ctx, cred).SetQueryParams(map[string]string{
		"keywords": keyword,
		"type":     "100",
		"limit":    strconv.Itoa(limit),
	})
	if err := s.get(req, "search_artist", "/cloudsearch", &body); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(body.Result.Artists))
	for _, a := range body.Result.Artists {
		artists = append(artists, a.toArtist())
	}
	return artists, nil
}

// GetArtistDetail fetches one artist
func (s *NeteaseService) GetArtistDetail(ctx context.Context, cred *session.Credential, artistID string) (*models.Artist, error) {
	if err := s.requireAuth(cred, "artist_detail"); err != nil {
		return nil, err
	}
	var body struct {
		Data struct {
			Artist neteaseArtist `json:"artist"`
		} `json:"data"`
	}
	if err := s.get(s.request(ctx, cred).SetQueryParam("id", artistID), "artist_detail", "/artist/detail", &body); err != nil {
		return nil, err
	}
	if body.Data.Artist.Name == "" {
		return nil, &PlatformError{Platform: neteasePlatform, Operation: "artist_detail", Message: "artist not found"}
	}
	artist := body.Data.Artist.toArtist()
	return &artist, nil
}

// GetArtistTopTracks lists an artist's hot songs, most popular first
func (s *NeteaseService) GetArtistTopTracks(ctx context.Context, cred *session.Credential, artistID string) ([]models.CatalogTrack, error) {
	if err := s.requireAuth(cred, "artist_top_songs"); err != nil {
		return nil, err
	}
	var body struct {
		Songs []neteaseSong `json:"songs"`
	}
	if err := s.get(s.request(ctx, cred).SetQueryParam("id", artistID), "artist_top_songs", "/artist/top/song", &body); err != nil {
		return nil, err
	}
	return toCatalogTracks(body.Songs), nil
}

// SearchTrack searches songs by free-form query
func (s *NeteaseService) SearchTrack(ctx context.Context, cred *session.Credential, query string, limit int) ([]models.CatalogTrack, error) {
	var body struct {
		Result struct {
			Songs []neteaseSong `json:"songs"`
		} `json:"result"`
	}
	req := s.request(ctx, cred).SetQueryParams(map[string]string{
		"keywords": query,
		"type":     "1",
		"limit":    strconv.Itoa(limit),
	})
	if err := s.get(req, "search_song", "/cloudsearch", &body); err != nil {
		return nil, err
	}
	return toCatalogTracks(body.Result.Songs), nil
}

func toCatalogTracks(songs []neteaseSong) []models.CatalogTrack {
	tracks := make([]models.CatalogTrack, 0, len(songs))
	for _, song := range songs {
		tracks = append(tracks, song.toCatalogTrack())
	}
	return tracks
}

// GetLyrics returns the LRC lyrics of a song, or "" when it has none
func (s *NeteaseService) GetLyrics(ctx context.Context, cred *session.Credential, trackID string) (string, error) {
	var body struct {
		Lrc struct {
			Lyric string `json:"lyric"`
		} `json:"lrc"`
	}
	if err := s.get(s.request(ctx, cred).SetQueryParam("id", trackID), "lyric", "/lyric", &body); err != nil {
		return "", err
	}
	return body.Lrc.Lyric, nil
}

// UploadAudioFile pushes a file into the user's cloud library, retrying with
// linear backoff. The response body is returned as-is for id extraction.
func (s *NeteaseService) UploadAudioFile(ctx context.Context, cred *session.Credential, localPath string) (*UploadResult, error) {
	if err := s.requireAuth(cred, "upload"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload file: %w", err)
	}
	fileName := filepath.Base(localPath)

	var result *UploadResult
	err = s.uploadRetry.do(ctx, func(attempt int) error {
		callCtx := ctx
		if s.uploadTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
			defer cancel()
		}

		resp, err := s.request(callCtx, cred).
			SetFileReader("songFile", fileName, bytes.NewReader(data)).
			Post("/cloud")
		if err != nil {
			return &PlatformError{Platform: neteasePlatform, Operation: "upload", Message: "request failed", Err: err}
		}
		if err := checkNeteaseResponse(resp, "upload"); err != nil {
			return err
		}

		code := gjson.GetBytes(resp.Body(), "code").Int()
		if code != 0 && code != http.StatusOK {
			return &PlatformError{
				Platform:  neteasePlatform,
				Operation: "upload",
				Message:   fmt.Sprintf("api returned code %d", code),
			}
		}
		result = &UploadResult{Code: int(code), Body: resp.Body()}
		slog.Info("Uploaded file to cloud library", "file", fileName, "attempt", attempt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return result, nil
}

// CreatePlaylist creates a private playlist and returns its id
func (s *NeteaseService) CreatePlaylist(ctx context.Context, cred *session.Credential, name string) (string, error) {
	if err := s.requireAuth(cred, "playlist_create"); err != nil {
		return "", err
	}
	resp, err := s.request(ctx, cred).
		SetQueryParams(map[string]string{"name": name, "privacy": "10"}).
		Get("/playlist/create")
	if err != nil {
		return "", &PlatformError{Platform: neteasePlatform, Operation: "playlist_create", Message: "request failed", Err: err}
	}
	if err := checkNeteaseResponse(resp, "playlist_create"); err != nil {
		return "", err
	}

	id := gjson.GetBytes(resp.Body(), "playlist.id")
	if !id.Exists() || id.String() == "" || id.String() == "0" {
		return "", &PlatformError{Platform: neteasePlatform, Operation: "playlist_create", Message: "response carried no playlist id"}
	}
	return id.String(), nil
}

// AddTracksToPlaylist appends tracks to a playlist, retrying with linear backoff
func (s *NeteaseService) AddTracksToPlaylist(ctx context.Context, cred *session.Credential, playlistID string, trackIDs []string) error {
	if err := s.requireAuth(cred, "playlist_add"); err != nil {
		return err
	}
	if len(trackIDs) == 0 {
		return nil
	}

	return s.playlistRetry.do(ctx, func(attempt int) error {
		resp, err := s.request(ctx, cred).
			SetQueryParams(map[string]string{
				"op":     "add",
				"pid":    playlistID,
				"tracks": strings.Join(trackIDs, ","),
			}).
			Get("/playlist/tracks")
		if err != nil {
			return &PlatformError{Platform: neteasePlatform, Operation: "playlist_add", Message: "request failed", Err: err}
		}

		// The status may sit at the top level or under a nested body
		code := gjson.GetBytes(resp.Body(), "code")
		if !code.Exists() {
			code = gjson.GetBytes(resp.Body(), "body.code")
		}
		if playlistAddOKCodes[code.Int()] {
			if code.Int() != http.StatusOK {
				slog.Info("Playlist add reported duplicates, treating as success", "playlist", playlistID, "code", code.Int())
			}
			return nil
		}
		return &PlatformError{
			Platform:  neteasePlatform,
			Operation: "playlist_add",
			Message:   fmt.Sprintf("api returned code %d (attempt %d)", code.Int(), attempt),
		}
	})
}

// LoginQRKey starts a QR login and returns its key
func (s *NeteaseService) LoginQRKey(ctx context.Context) (string, error) {
	var body struct {
		Data struct {
			Unikey string `json:"unikey"`
		} `json:"data"`
	}
	if err := s.get(s.request(ctx, nil), "login_qr_key", "/login/qr/key", &body); err != nil {
		return "", err
	}
	if body.Data.Unikey == "" {
		return "", &PlatformError{Platform: neteasePlatform, Operation: "login_qr_key", Message: "response carried no key"}
	}
	return body.Data.Unikey, nil
}

// LoginQRCreate renders the QR code for a login key
func (s *NeteaseService) LoginQRCreate(ctx context.Context, key string) (*QRCode, error) {
	var body struct {
		Data struct {
			QRImg string `json:"qrimg"`
			QRURL string `json:"qrurl"`
		} `json:"data"`
	}
	req := s.request(ctx, nil).SetQueryParams(map[string]string{"key": key, "qrimg": "true"})
	if err := s.get(req, "login_qr_create", "/login/qr/create", &body); err != nil {
		return nil, err
	}
	return &QRCode{Key: key, Image: body.Data.QRImg, URL: body.Data.QRURL}, nil
}

// LoginQRCheck polls the login state of a QR key
func (s *NeteaseService) LoginQRCheck(ctx context.Context, key string) (*QRCheckResult, error) {
	var body QRCheckResult
	if err := s.get(s.request(ctx, nil).SetQueryParam("key", key), "login_qr_check", "/login/qr/check", &body); err != nil {
		return nil, err
	}
	if body.Code != QRStatusConfirmed {
		body.Cookie = ""
	}
	return &body, nil
}

// GetUserAccount returns the profile of the logged-in user
func (s *NeteaseService) GetUserAccount(ctx context.Context, cred *session.Credential) (*UserAccount, error) {
	if err := s.requireAuth(cred, "user_account"); err != nil {
		return nil, err
	}
	var body struct {
		Profile *struct {
			UserID    int64  `json:"userId"`
			Nickname  string `json:"nickname"`
			AvatarURL string `json:"avatarUrl"`
			VIPType   int    `json:"vipType"`
		} `json:"profile"`
	}
	if err := s.get(s.request(ctx, cred), "user_account", "/user/account", &body); err != nil {
		return nil, err
	}
	if body.Profile == nil {
		return nil, &PlatformError{Platform: neteasePlatform, Operation: "user_account", Message: "no profile for session", Err: ErrNotAuthenticated}
	}
	return &UserAccount{
		UserID:    strconv.FormatInt(body.Profile.UserID, 10),
		Nickname:  body.Profile.Nickname,
		AvatarURL: body.Profile.AvatarURL,
		VIPType:   body.Profile.VIPType,
	}, nil
}

// Health checks that the API server answers
func (s *NeteaseService) Health(ctx context.Context) error {
	_, err := s.LoginQRKey(ctx)
	return err
}
