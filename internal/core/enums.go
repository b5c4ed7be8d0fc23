package core

import "strings"

// Icon names a known glyph in the client's icon set.
type Icon string

const (
	IconDollarSign      Icon = "DollarSign"
	IconWallet          Icon = "Wallet"
	IconCreditCard      Icon = "CreditCard"
	IconBanknote        Icon = "Banknote"
	IconCoins           Icon = "Coins"
	IconPiggyBank       Icon = "PiggyBank"
	IconTrendingUp      Icon = "TrendingUp"
	IconTrendingDown    Icon = "TrendingDown"
	IconPieChart        Icon = "PieChart"
	IconBarChart3       Icon = "BarChart3"
	IconBriefcase       Icon = "Briefcase"
	IconZap             Icon = "Zap"
	IconGift            Icon = "Gift"
	IconStar            Icon = "Star"
	IconAward           Icon = "Award"
	IconTarget          Icon = "Target"
	IconShoppingCart    Icon = "ShoppingCart"
	IconUtensilsCrossed Icon = "UtensilsCrossed"
	IconCar             Icon = "Car"
	IconHome            Icon = "Home"
	IconSmartphone      Icon = "Smartphone"
	IconShirt           Icon = "Shirt"
	IconGamepad2        Icon = "Gamepad2"
	IconFilm            Icon = "Film"
	IconMusic           Icon = "Music"
	IconHeart           Icon = "Heart"
	IconGraduationCap   Icon = "GraduationCap"
	IconPlane           Icon = "Plane"
	IconCoffee          Icon = "Coffee"
	IconPizza           Icon = "Pizza"
	IconReceipt         Icon = "Receipt"
	IconWifi            Icon = "Wifi"
	IconPhone           Icon = "Phone"
	IconMoreHorizontal  Icon = "MoreHorizontal"
	IconHelpCircle      Icon = "HelpCircle"
	IconTag             Icon = "Tag"
	IconCalendar        Icon = "Calendar"
	IconClock           Icon = "Clock"
	IconMapPin          Icon = "MapPin"
	IconUser            Icon = "User"
	IconUsers           Icon = "Users"
	IconSettings        Icon = "Settings"
	IconShield          Icon = "Shield"
	IconSparkles        Icon = "Sparkles"
)

// FallbackIcon is used for names outside the known set.
const FallbackIcon = IconHelpCircle

var knownIcons = map[Icon]struct{}{}

func init() {
	for _, i := range []Icon{
		IconDollarSign, IconWallet, IconCreditCard, IconBanknote, IconCoins, IconPiggyBank,
		IconTrendingUp, IconTrendingDown, IconPieChart, IconBarChart3, IconBriefcase, IconZap,
		IconGift, IconStar, IconAward, IconTarget, IconShoppingCart, IconUtensilsCrossed,
		IconCar, IconHome, IconSmartphone, IconShirt, IconGamepad2, IconFilm, IconMusic,
		IconHeart, IconGraduationCap, IconPlane, IconCoffee, IconPizza, IconReceipt, IconWifi,
		IconPhone, IconMoreHorizontal, IconHelpCircle, IconTag, IconCalendar, IconClock,
		IconMapPin, IconUser, IconUsers, IconSettings, IconShield, IconSparkles,
	} {
		knownIcons[i] = struct{}{}
	}
}

// ResolveIcon maps name onto the known set.
// An empty name yields def; an unknown name yields FallbackIcon.
func ResolveIcon(name string, def Icon) Icon {
	name = strings.TrimSpace(name)
	if name == "" {
		return def
	}
	if _, ok := knownIcons[Icon(name)]; ok {
		return Icon(name)
	}
	return FallbackIcon
}

// Theme identifies a UI colour theme stored on the user profile.
type Theme string

const (
	ThemePurpleDark       Theme = "purple-dark"
	ThemeOceanBlue        Theme = "ocean-blue"
	ThemeForestGreen      Theme = "forest-green"
	ThemeSunsetOrange     Theme = "sunset-orange"
	ThemeMidnightPurple   Theme = "midnight-purple"
	ThemeRosePink         Theme = "rose-pink"
	ThemeProfessionalGray Theme = "professional-gray"

	DefaultTheme = ThemePurpleDark
)

var themes = []Theme{
	ThemePurpleDark, ThemeOceanBlue, ThemeForestGreen, ThemeSunsetOrange,
	ThemeMidnightPurple, ThemeRosePink, ThemeProfessionalGray,
}

// ParseTheme returns the theme named s and whether it is known.
func ParseTheme(s string) (Theme, bool) {
	for _, t := range themes {
		if string(t) == s {
			return t, true
		}
	}
	return DefaultTheme, false
}

// ThemeOrDefault resolves stored values, falling back to DefaultTheme.
func ThemeOrDefault(s string) Theme {
	t, _ := ParseTheme(s)
	return t
}

// Locale is a supported display locale.
type Locale string

const (
	LocaleID   Locale = "id-ID"
	LocaleEnUS Locale = "en-US"
	LocaleEnGB Locale = "en-GB"
	LocaleJaJP Locale = "ja-JP"
	LocaleZhCN Locale = "zh-CN"

	DefaultLocale = LocaleID
)

// ParseLocale returns the locale named s and whether it is known.
func ParseLocale(s string) (Locale, bool) {
	switch l := Locale(s); l {
	case LocaleID, LocaleEnUS, LocaleEnGB, LocaleJaJP, LocaleZhCN:
		return l, true
	default:
		return DefaultLocale, false
	}
}

// LocaleOrDefault resolves stored values, falling back to DefaultLocale.
func LocaleOrDefault(s string) Locale {
	l, _ := ParseLocale(s)
	return l
}
