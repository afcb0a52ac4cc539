package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	config "github.com/nikhilb/event_booking/configs"
	"github.com/nikhilb/event_booking/models"
)

const ticketsDir = "tickets"

// GenerateTicketPDF renders the ticket template to PDF and writes it under
// tickets/. Returns the local file path; callers attach it to the ticket
// email. Runs only after the payment transaction has committed, so a
// rendering failure can never undo a payment.
func GenerateTicketPDF(booking models.Booking, event models.Event) (string, error) {
	htmlContent, err := renderTicketHTML(booking, event)
	if err != nil {
		return "", err
	}

	pdfBytes, err := generatePDFFromHTML(htmlContent)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(ticketsDir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(ticketsDir, fmt.Sprintf("ticket_%s.pdf", booking.ID))
	if err := os.WriteFile(filePath, pdfBytes, 0o644); err != nil {
		return "", err
	}

	if url, err := uploadTicketToCloudinary(pdfBytes, booking.ID.String()); err == nil && url != "" {
		log.Printf("✅ Ticket %s uploaded: %s", booking.ID, url)
	}

	return filePath, nil
}

func renderTicketHTML(booking models.Booking, event models.Event) (string, error) {
	tmpl, err := template.ParseFiles("templates/ticket.html")
	if err != nil {
		return "", err
	}

	paymentID := "N/A"
	if booking.PaymentID != nil {
		paymentID = *booking.PaymentID
	}

	data := struct {
		BookingID     string
		EventTitle    string
		EventDate     string
		EventLocation string
		SeatsBooked   int
		UserEmail     string
		PaymentID     string
		PaymentStatus string
	}{
		BookingID:     booking.ID.String(),
		EventTitle:    event.Title,
		EventDate:     event.Date.Format("January 2, 2006 15:04"),
		EventLocation: event.Location,
		SeatsBooked:   booking.SeatsBooked,
		UserEmail:     booking.User.Email,
		PaymentID:     paymentID,
		PaymentStatus: booking.PaymentStatus,
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadTicketToCloudinary(fileBytes []byte, bookingID string) (string, error) {
	cloudinaryURL := config.Config("CLOUDINARY_URL")
	if cloudinaryURL == "" {
		return "", nil
	}

	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploader.UploadParams{
		PublicID:     fmt.Sprintf("tickets/ticket_%s", bookingID),
		Folder:       "event_booking_tickets",
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
