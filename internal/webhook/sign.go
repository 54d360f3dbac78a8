package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// DingTalkSign returns the signature DingTalk robots expect for a millisecond
// timestamp: base64(hmac_sha256(secret, "timestamp\nsecret")).
func DingTalkSign(timestampMillis int64, secret string) string {
	stringToSign := strconv.FormatInt(timestampMillis, 10) + "\n" + secret
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// FeishuSign returns the signature Feishu bots expect for a second
// timestamp. The key is "timestamp\nsecret" and the message is empty.
func FeishuSign(timestampSeconds int64, secret string) string {
	key := strconv.FormatInt(timestampSeconds, 10) + "\n" + secret
	h := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
