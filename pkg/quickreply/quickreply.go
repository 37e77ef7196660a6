// Package quickreply picks canned compose suggestions for an empty chat
// based on the listing's category and subcategory.
package quickreply

// suggestion sets, most specific first
var (
	freight = []string{
		"Здравствуйте! Какая цена за час?",
		"Здравствуйте! Сколько стоит доставка по городу?",
		"Здравствуйте! Когда вы свободны?",
		"Здравствуйте! Есть грузчики?",
		"Здравствуйте! Какая вместимость кузова?",
	}
	realEstateRent = []string{
		"Здравствуйте! Ещё сдаётся?",
		"Здравствуйте! Какая цена за месяц?",
		"Здравствуйте! Можно посмотреть сегодня?",
		"Здравствуйте! Коммунальные включены?",
		"Здравствуйте! На какой срок сдаёте?",
	}
	generalRent = []string{
		"Здравствуйте! Ещё сдаётся?",
		"Здравствуйте! Какая цена за сутки?",
		"Здравствуйте! Когда можно забрать?",
		"Здравствуйте! Какой залог?",
		"Здравствуйте! Возможна доставка?",
	}
	services = []string{
		"Здравствуйте! Ещё актуально?",
		"Здравствуйте! Какая цена за работу?",
		"Здравствуйте! Когда сможете приступить?",
		"Здравствуйте! Выезжаете на дом?",
		"Здравствуйте! Есть примеры работ?",
	}
	jobs = []string{
		"Здравствуйте! Вакансия ещё открыта?",
		"Здравствуйте! Какой график работы?",
		"Здравствуйте! Какая оплата?",
		"Здравствуйте! Нужен ли опыт?",
		"Здравствуйте! Когда можно выйти?",
	}
	defaultSale = []string{
		"Здравствуйте! Ещё актуально?",
		"Здравствуйте! Торг уместен?",
		"Здравствуйте! Где можно посмотреть?",
		"Здравствуйте! Какое состояние?",
		"Здравствуйте! Возможна доставка?",
	}
)

// Suggestions returns the ordered suggestion list for a listing. It is
// a pure function: identical inputs always return identical lists.
// Matching runs in fixed priority order: freight services, real-estate
// rent, general rent, general services, jobs, then the default sale
// set.
func Suggestions(category, subCategory string) []string {
	var src []string
	switch {
	case category == "services" && subCategory == "Грузоперевозки":
		src = freight
	case category == "rent" && subCategory == "Квартиры":
		src = realEstateRent
	case category == "rent":
		src = generalRent
	case category == "services":
		src = services
	case category == "jobs":
		src = jobs
	default:
		src = defaultSale
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
