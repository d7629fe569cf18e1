package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Core palette
	Green       = lipgloss.Color("#00FF41")
	BrightGreen = lipgloss.Color("#39FF14")
	MedGreen    = lipgloss.Color("#00C832")
	DarkGreen   = lipgloss.Color("#008F11")
	DimGreen    = lipgloss.Color("#003B00")
	Cyan        = lipgloss.Color("#00D4AA")
	Amber       = lipgloss.Color("#FFB000")
	Red         = lipgloss.Color("#FF4136")
	Black       = lipgloss.Color("#0D0208")
	MidGray     = lipgloss.Color("#3a3a4e")
	LightGray   = lipgloss.Color("#aaaaaa")
	White       = lipgloss.Color("#e0e0e0")

	// Tab bar
	TabActiveStyle = lipgloss.NewStyle().
			Background(DarkGreen).
			Foreground(Black).
			Bold(true).
			Padding(0, 2)

	TabInactiveStyle = lipgloss.NewStyle().
				Foreground(DarkGreen).
				Padding(0, 2)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(DarkGreen).
			Foreground(Black).
			Bold(true).
			Padding(0, 1)

	// Table rows
	HeaderRowStyle = lipgloss.NewStyle().
			Foreground(MedGreen).
			Bold(true).
			Underline(true)

	RowStyle = lipgloss.NewStyle().
			Foreground(White)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(BrightGreen).
				Bold(true)

	LoadedBadgeStyle = lipgloss.NewStyle().
				Foreground(Black).
				Background(Green).
				Padding(0, 1)

	// Download progress
	ProgressDoneStyle = lipgloss.NewStyle().Foreground(Green)
	ProgressRestStyle = lipgloss.NewStyle().Foreground(DimGreen)

	// Chat
	UserLabelStyle = lipgloss.NewStyle().
			Foreground(BrightGreen).
			Bold(true)

	AssistantLabelStyle = lipgloss.NewStyle().
				Foreground(Cyan).
				Bold(true)

	ThinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4a5a3a")).
			Italic(true)

	// Input
	InputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(DarkGreen).
				Padding(0, 1)

	// Spinner
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(BrightGreen)

	// Banner
	BannerStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// Confirmation prompt
	ConfirmStyle = lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// Error
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(DimGreen)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true)
)

const Banner = `
  ███╗   ███╗ ██████╗ ██████╗ ███████╗██╗     ██████╗ ███████╗ ██████╗██╗  ██╗
  ████╗ ████║██╔═══██╗██╔══██╗██╔════╝██║     ██╔══██╗██╔════╝██╔════╝██║ ██╔╝
  ██╔████╔██║██║   ██║██║  ██║█████╗  ██║     ██║  ██║█████╗  ██║     █████╔╝
  ██║╚██╔╝██║██║   ██║██║  ██║██╔══╝  ██║     ██║  ██║██╔══╝  ██║     ██╔═██╗
  ██║ ╚═╝ ██║╚██████╔╝██████╔╝███████╗███████╗██████╔╝███████╗╚██████╗██║  ██╗
  ╚═╝     ╚═╝ ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚═════╝ ╚══════╝ ╚═════╝╚═╝  ╚═╝
`
