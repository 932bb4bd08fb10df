package intent

import (
	"regexp"
	"strings"
)

// Token tables for the deterministic heuristics. Matching is lowercase
// substring matching over the stripped last user utterance, so each entry is
// a stem that covers its inflected forms.

var genVerbs = []string{
	"сформируй", "сформировать", "сформируем",
	"составь", "составить", "составим",
	"сгенерируй", "сгенерировать", "сгенерируем",
	"подготовь", "подготовить", "подготовим",
	"оформи", "оформить", "оформим",
	"сделай", "сделать", "сделаем", "сделайте",
	"выведи", "покажи", "дай",
}

var docNouns = []string{
	"регламент", "документ", "протокол", "обследован",
	"инструкц", "положение", "политик", "итогов", "финальн",
}

var editVerbs = []string{
	"измени", "передел", "отредакт", "поправ", "замени",
	"добав", "убер", "удали", "исключ", "верни", "восстанов",
	"внеси", "занеси", "дополни", "оставь", "осталось",
	"оставалось", "только",
}

var editTargetHints = []string{
	"пункт", "подпункт", "раздел", "в документ", "в регламент",
}

var readVerbs = []string{
	"прочитай", "прочесть", "посмотри", "ознаком", "изучи",
	"проанализ", "что в", "о чем", "о чём", "опиши", "перескажи",
	"кратко", "суммари", "summary",
}

var fileNouns = []string{
	"файл", "вложен", "документ", "таблиц", "презентац",
}

// readEditExclusions suppress the read signal: a mention of editing the
// process document always dominates a read phrasing.
var readEditExclusions = []string{
	"в документ", "в регламент", "измени", "отредакт", "добав",
	"удали", "убер", "замени", "внеси", "дополни",
}

// proposalHints are scanned in the assistant turn preceding a bare
// confirmation to decide whether the confirmation applies a proposed edit.
var proposalHints = []string{
	"верно ли", "если да", "я внесу", "внесу эти изменения",
	"убрать", "удалить", "добавить", "изменить", "пункт",
}

// classifierEditVerbs is the slightly narrower edit-verb set the explicit
// document command fast path uses (no confirmation words).
var classifierEditVerbs = []string{
	"измени", "передел", "отредакт", "поправ", "замени",
	"добав", "убер", "удали", "исключ", "внеси", "дополни",
}

// classifierDocTargets is broader than editTargetHints: a bare document
// noun counts as a target when paired with an edit verb.
var classifierDocTargets = []string{
	"в документ", "в регламент", "в протокол",
	"пункт", "раздел", "регламент", "протокол", "документ",
}

var (
	sectionRefRe   = regexp.MustCompile(`\b\d+(?:\.\d+)+\b`)
	confirmationRe = regexp.MustCompile(`^(верно|да|ок|okay|окей|согласен|согласна|подтверждаю|вноси|внеси|делай|выполняй|применяй)([.!?\s,].*)?$`)
)

func containsAny(t string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(t, tok) {
			return true
		}
	}
	return false
}
