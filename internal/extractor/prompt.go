package extractor

import "strings"

const (
	ocrHeader        = "[OCR Text from attached images]:"
	imagePlaceholder = "(see image for job details)"
)

const extractionPrompt = `You analyze posts from Facebook job groups. Extract structured job information from the post below.
The post may contain its own text and OCR text read from attached images. Use all of it.

Respond with a JSON object with these fields:
- jobTitle: job title (string, "" if not found)
- company: company or employer name (string, "" if not found)
- location: job location (string, "" if not found)
- salary: salary or pay range (string, "" if not found)
- jobType: one of "full-time", "part-time", "contract", "remote", or "" if unknown
- description: short clean summary of the job (string)
- requirements: requirements or qualifications (array of strings, [] if none)
- contactInfo: how to apply or whom to contact (string, "" if not found)
- contactEmail: email address for applying (string, "" if not found)
- contactPhone: phone number for applying (string, "" if not found)

Rules:
- If the post is not a job posting (a discussion, a question, an advert for something else), respond with null.
- Respond with the JSON object or null only. No markdown, no code fences.
- Pull email and phone out of any contact details, including OCR text.

Post text:
`

// combinedText joins the post text with a delimited block of the non-empty
// OCR texts.
func combinedText(text string, ocrTexts []string) string {
	var ocr []string
	for _, t := range ocrTexts {
		if t != "" {
			ocr = append(ocr, t)
		}
	}
	if len(ocr) == 0 {
		return text
	}
	return text + "\n\n" + ocrHeader + "\n" + strings.Join(ocr, "\n")
}

func textPrompt(combined string) string {
	return extractionPrompt + combined
}

func imagePrompt(combined string) string {
	if strings.TrimSpace(combined) == "" {
		return extractionPrompt + imagePlaceholder
	}
	return extractionPrompt + combined
}
