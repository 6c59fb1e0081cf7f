package listing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

const schedulePage = `<html><body>
<div class="event">
  <img src="/wp-content/themes/njpw-en/images/common/noimage_poster.jpg">
  <h3> Road to   DOMINION </h3>
  <ul>
    <li>
      <a href="/card/1001">card</a>
      <p class="date">SUN. MAY. 15. 2022 | DOOR 15:30 | BELL 17:00</p>
      <p class="city">Tokyo</p>
      <p class="venue">Korakuen Hall</p>
    </li>
    <li>
      <p class="date">FRI. JULY. 1. 2022 | DOOR 6:30PM | BELL 7:30PM</p>
      <p class="city">Long Beach, CA</p>
    </li>
  </ul>
</div>
<div class="event">
  <img src="https://cdn.example.com/poster.jpg">
  <h3>Tour TBA</h3>
  <ul><li><p class="date">Coming soon</p></li></ul>
</div>
</body></html>`

func TestParsePage(t *testing.T) {
	n := &Normalizer{BaseURL: "https://www.njpw1972.com", Collection: storage.CollectionSchedule, SpoilerHours: 14}
	page, err := n.Parse(strings.NewReader(schedulePage))
	require.NoError(t, err)
	require.Len(t, page.Shows, 3)

	first, second := page.Shows[0], page.Shows[1]
	assert.Equal(t, "Road to DOMINION", first.Name)
	assert.Equal(t, "Road to DOMINION", second.Name)
	assert.NotEqual(t, first.DateKey, second.DateKey)

	assert.Equal(t, datetime.TagUTC, first.SourceTZ)
	assert.True(t, first.Start.Equal(time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2022-05-15", first.DateKey)
	assert.Equal(t, "Tokyo", first.City)
	assert.Equal(t, "Korakuen Hall", first.Venue)
	assert.Equal(t, "https://www.njpw1972.com/card/1001", first.Card)

	assert.Equal(t, datetime.TagLocal, second.SourceTZ)
	assert.True(t, second.Start.Equal(time.Date(2022, 7, 1, 19, 30, 0, 0, time.UTC)))
	assert.Equal(t, "Long Beach, CA", second.City)
	assert.Empty(t, second.Venue, "venue must not leak from the sibling date")
	assert.Empty(t, second.Card)

	for _, s := range page.Shows[:2] {
		assert.Equal(t, "https://www.njpw1972.com"+PlaceholderThumb, s.Thumb)
		assert.Equal(t, 14, s.SpoilerHours)
		assert.Equal(t, storage.CollectionSchedule, s.Collection)
	}

	tba := page.Shows[2]
	assert.True(t, tba.Start.IsZero())
	assert.Equal(t, datetime.TagNone, tba.SourceTZ)
	assert.Equal(t, "?Coming soon", tba.DateKey)
	assert.Equal(t, "https://cdn.example.com/poster.jpg", tba.Thumb)
	require.Len(t, page.Unrecognized, 1)
	assert.Equal(t, Unrecognized{Event: "Tour TBA", Raw: "Coming soon"}, page.Unrecognized[0])
}

func TestParsePageDeterministic(t *testing.T) {
	n := &Normalizer{BaseURL: "https://www.njpw1972.com", Collection: storage.CollectionResult}
	a, err := n.Parse(strings.NewReader(schedulePage))
	require.NoError(t, err)
	b, err := n.Parse(strings.NewReader(schedulePage))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

const rosterPage = `<ul class="wrestlerList">
<li><a href="/profile/tanahashi"><img src="/img/tanahashi.png"><p class="name">Hiroshi Tanahashi</p></a></li>
<li><a href="/profile/okada"><img src="/img/okada.png"><p class="name">Kazuchika Okada</p></a></li>
</ul>`

const detailPage = `<div class="profileDetail">
<p>UNIT</p><p>Ace</p>
<dl>
<dt>HEIGHT</dt><dd>181cm</dd>
<dt>WEIGHT</dt><dd>101kg</dd>
<dt>FINISH HOLD</dt><dd>High Fly Flow</dd>
<dt>TWITTER</dt><dd><a href="https://twitter.com/tanahashi1_100">@tanahashi1_100</a></dd>
</dl>
<div class="textBox">
  The Ace of the Universe.
</div>
</div>`

func TestParseRosterAndDetail(t *testing.T) {
	profiles, err := ParseRoster(strings.NewReader(rosterPage), "https://www.njpw1972.com")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "https://www.njpw1972.com/profile/tanahashi", profiles[0].Link)
	assert.Equal(t, "https://www.njpw1972.com/img/okada.png", profiles[1].Render)

	p := profiles[0]
	require.NoError(t, ParseDetail(strings.NewReader(detailPage), &p))
	assert.Equal(t, map[string]string{
		"unit":     "Ace",
		"height":   "181cm",
		"weight":   "101kg",
		"finisher": "High Fly Flow",
		"twitter":  "https://twitter.com/tanahashi1_100",
	}, p.Attributes)
	assert.Equal(t, "The Ace of the Universe.", p.Bio)

	err = ParseDetail(strings.NewReader("<html></html>"), &p)
	assert.Error(t, err)
}
