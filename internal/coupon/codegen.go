// Package coupon は兑换码の生成と、外部ユーザー1人につき1件の発行を保証する発行処理を提供する。
package coupon

import (
	"crypto/rand"
	"strconv"
	"time"
)

const (
	codePrefix = "NEW-"
	codeLength = 12
	// codeAlphabet は見間違えやすいI、O、0、1を除いた32文字。
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	idPrefix     = "coupon_"
	idRandLength = 13
	idAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewCouponCode は "NEW-" に続けて12文字の兑换码を生成する。
// 一意性はcouponsテーブルのユニーク制約で担保する。
func NewCouponCode() string {
	return codePrefix + randomString(codeAlphabet, codeLength)
}

// NewCouponID は "coupon_<ミリ秒>_<英小文字と数字13文字>" 形式のIDを生成する。
func NewCouponID(now time.Time) string {
	return idPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomString(idAlphabet, idRandLength)
}

// randomString はalphabetから一様にn文字を選ぶ。
// 256がalphabet長の倍数にならない場合は偏りを避けるため範囲外のバイトを捨てる。
func randomString(alphabet string, n int) string {
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
