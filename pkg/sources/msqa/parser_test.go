package msqa

import (
	"testing"
	"time"
)

const listingFixture = `
<html><body>
<div class="box margin-bottom-xxs">
  <h2 class="title"><a href="/en-us/answers/questions/2151234/intune-enrollment-fails-on-ios">Intune enrollment fails on iOS</a></h2>
  <p class="has-text-wrap">Devices stuck at the enrollment profile step since the last update.</p>
  <a class="profile-url">Jane Admin</a>
  <time datetime="2025-03-08T14:30:00Z">Mar 8, 2025</time>
  <span>2 answers</span>
  <span data-test-id="question-tag-microsoft-security-intune">Microsoft Intune</span>
</div>
<div class="box margin-bottom-xxs">
  <h2 class="title"><a href="/en-us/answers/questions/2151240/conditional-access-policy-not-applying">Conditional access policy not applying</a></h2>
  <p class="has-text-wrap"></p>
  <span>0 answers</span>
  <span data-test-id="question-tag-microsoft-security-entra-entra-id">Entra ID</span>
  <span data-test-id="unrelated-widget">x</span>
</div>
<div class="box margin-bottom-xxs">
  <h2 class="title"><a href="/en-us/answers/tags/455/something">Not a question link</a></h2>
</div>
</body></html>`

func TestParseQuestions(t *testing.T) {
	questions, err := ParseQuestions(listingFixture)
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	first := questions[0]
	if first.ID != "2151234" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.Title != "Intune enrollment fails on iOS" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Author != "Jane Admin" {
		t.Errorf("Author = %q", first.Author)
	}
	if first.URL != "https://learn.microsoft.com/en-us/answers/questions/2151234/intune-enrollment-fails-on-ios" {
		t.Errorf("URL = %q", first.URL)
	}
	if first.AnswersCount != 2 {
		t.Errorf("AnswersCount = %d", first.AnswersCount)
	}
	want := time.Date(2025, 3, 8, 14, 30, 0, 0, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v", first.CreatedAt)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "microsoft-security-intune" {
		t.Errorf("Tags = %v", first.Tags)
	}

	second := questions[1]
	if second.Content != second.Title {
		t.Errorf("empty excerpt should fall back to the title, got %q", second.Content)
	}
	if second.Author != "Anonymous" {
		t.Errorf("missing author should default to Anonymous, got %q", second.Author)
	}
	if len(second.Tags) != 1 || second.Tags[0] != "microsoft-security-entra-entra-id" {
		t.Errorf("Tags = %v", second.Tags)
	}
}

func TestParseQuestionsSkipsDriftedCards(t *testing.T) {
	// A page whose cards lost the expected structure parses to zero
	// questions rather than erroring.
	questions, err := ParseQuestions(`<html><body><div class="box margin-bottom-xxs"><span>redesigned card</span></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 0 {
		t.Errorf("expected no questions from drifted markup, got %d", len(questions))
	}
}

func TestParseQuestionsEmptyPage(t *testing.T) {
	questions, err := ParseQuestions("<html><body></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 0 {
		t.Errorf("expected no questions, got %d", len(questions))
	}
}
