// Package signing produces and verifies HMAC-signed playback URLs so the
// player can only fetch streams that were issued to the requesting user.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Signer struct {
	Secret []byte
}

type Signed struct {
	VideoGUID string
	Exp       int64
	UID       string
	Sig       string
}

func New(secret string) *Signer {
	return &Signer{Secret: []byte(secret)}
}

// Sign binds a provider video GUID to a user id until exp.
func (s *Signer) Sign(videoGUID, userID string, exp time.Time) Signed {
	sig := s.signValue(videoGUID, userID, exp.Unix())
	return Signed{VideoGUID: videoGUID, Exp: exp.Unix(), UID: userID, Sig: sig}
}

func (s *Signer) Verify(videoGUID, userID string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.signValue(videoGUID, userID, exp)))
}

func (s *Signer) signValue(videoGUID, userID string, exp int64) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(videoGUID))
	mac.Write([]byte("|"))
	mac.Write([]byte(userID))
	mac.Write([]byte("|"))
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// BuildSignedURL renders the signed playback parameters onto base, which is
// typically "<vod-service>/v1/play".
func BuildSignedURL(base string, signed Signed) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("video", signed.VideoGUID)
	q.Set("exp", strconv.FormatInt(signed.Exp, 10))
	q.Set("uid", signed.UID)
	q.Set("sig", signed.Sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractSigned pulls the signed playback parameters back out of a query.
func ExtractSigned(query url.Values) (string, string, int64, string, error) {
	videoGUID := strings.TrimSpace(query.Get("video"))
	uid := strings.TrimSpace(query.Get("uid"))
	expStr := strings.TrimSpace(query.Get("exp"))
	sig := strings.TrimSpace(query.Get("sig"))
	if videoGUID == "" || uid == "" || expStr == "" || sig == "" {
		return "", "", 0, "", fmt.Errorf("missing signed params")
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", "", 0, "", err
	}
	return videoGUID, uid, exp, sig, nil
}
