/*
Copyright 2025 Panelku Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"strings"
	"time"
)

// Service is one purchasable catalog entry, normalized from the upstream
// panel's service list.
type Service struct {
	ProviderServiceID string  `json:"provider_service_id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Platform          string  `json:"platform"`
	Action            string  `json:"action"`
	Min               int64   `json:"min"`
	Max               int64   `json:"max"`
	RatePer1k         float64 `json:"rate_per_1k"`
	Description       string  `json:"description,omitempty"`
}

// CatalogMeta records where a snapshot came from and how fresh it is.
type CatalogMeta struct {
	Source   string    `json:"source"` // "panel", "cache" or "manual"
	CachedAt time.Time `json:"cached_at"`
	Warning  string    `json:"warning,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
}

type CatalogSnapshot struct {
	List []Service   `json:"list"`
	Meta CatalogMeta `json:"meta"`
}

const OtherLabel = "Other"

// classifyRule maps a keyword substring to a label. Rules are ordered;
// the first match wins.
type classifyRule struct {
	keyword string
	label   string
}

var platformRules = []classifyRule{
	{"tiktok", "TikTok"},
	{"instagram", "Instagram"},
	{"ig ", "Instagram"},
	{"youtube", "YouTube"},
	{"yt ", "YouTube"},
	{"facebook", "Facebook"},
	{"fb ", "Facebook"},
	{"twitter", "Twitter"},
	{"x.com", "Twitter"},
	{"telegram", "Telegram"},
	{"whatsapp", "WhatsApp"},
	{"shopee", "Shopee"},
	{"spotify", "Spotify"},
	{"discord", "Discord"},
	{"threads", "Threads"},
	{"linkedin", "LinkedIn"},
	{"twitch", "Twitch"},
}

var actionRules = []classifyRule{
	{"follower", "Followers"},
	{"subscriber", "Followers"},
	{"like", "Likes"},
	{"livestream", "Live"},
	{"live", "Live"},
	{"view", "Views"},
	{"watch", "Views"},
	{"comment", "Comments"},
	{"share", "Shares"},
	{"retweet", "Shares"},
	{"member", "Members"},
	{"play", "Plays"},
}

func classify(rules []classifyRule, texts ...string) string {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, r := range rules {
			if strings.Contains(lower, r.keyword) {
				return r.label
			}
		}
	}
	return OtherLabel
}

// ClassifyPlatform derives a platform label from service name and category.
// Heuristic keyword matching with no correctness guarantee; unknown input
// lands in "Other".
func ClassifyPlatform(name, category string) string {
	return classify(platformRules, name, category)
}

// ClassifyAction derives an action label (Followers, Likes, ...) from
// service name and category, first match wins.
func ClassifyAction(name, category string) string {
	return classify(actionRules, name, category)
}
